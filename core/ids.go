// Package core holds the small identifier and schema value types shared by
// every layer of the client.
package core

// EntityID identifies one entity type within a store's schema.
type EntityID uint32

// PropertyID identifies one property within its entity. Property IDs are
// stable across schema migrations; they are never reused for a new property.
type PropertyID uint32

// ID is the object identifier assigned by the storage engine.
// IDs are dense, positive and strictly increasing per entity.
type ID = uint64
