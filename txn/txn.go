// Package txn defines the read-transaction boundary the query layer consumes
// from the storage engine.
package txn

import "context"

// Txn is one open read-only transaction. Row buffers borrowed from the
// engine stay valid for the lifetime of the transaction that produced them
// and no longer.
type Txn interface {
	// ID returns an engine-assigned identifier for log correlation.
	ID() uint64
}

// Manager opens read-only transactions bound to one store.
type Manager interface {
	// View runs fn inside a read-only transaction and releases it when fn
	// returns. The snapshot observed by fn is stable for its full duration,
	// including any time fn spends blocked.
	View(ctx context.Context, fn func(tx Txn) error) error
}
