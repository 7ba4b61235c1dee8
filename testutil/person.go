package testutil

import (
	"fmt"
	"testing"

	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/internal/buf"
	"github.com/oakdb/oak/internal/memengine"
)

// PersonEntity is the entity type id the Person schema registers under.
const PersonEntity core.EntityID = 1

// Person property ids.
const (
	PersonIDProp core.PropertyID = iota + 1
	PersonNameProp
	PersonEmailProp
	PersonAgeProp
	PersonScoreProp
	PersonActiveProp
	PersonTokenProp
)

// Person schema properties, one shared immutable value per property, the way
// generated bindings lay them out.
var (
	PersonID     = core.Property{Entity: PersonEntity, ID: PersonIDProp, Type: core.TypeLong, Unsigned: true}
	PersonName   = core.Property{Entity: PersonEntity, ID: PersonNameProp, Type: core.TypeString}
	PersonEmail  = core.Property{Entity: PersonEntity, ID: PersonEmailProp, Type: core.TypeString}
	PersonAge    = core.Property{Entity: PersonEntity, ID: PersonAgeProp, Type: core.TypeLong}
	PersonScore  = core.Property{Entity: PersonEntity, ID: PersonScoreProp, Type: core.TypeDouble}
	PersonActive = core.Property{Entity: PersonEntity, ID: PersonActiveProp, Type: core.TypeBool}
	PersonToken  = core.Property{Entity: PersonEntity, ID: PersonTokenProp, Type: core.TypeByteVector}
)

// Person is the canonical test entity.
type Person struct {
	ID     uint64
	Name   string
	Email  string
	Age    int64
	Score  float64
	Active bool
	Token  []byte
}

// Fields converts a Person to the engine's field map.
func (p Person) Fields() memengine.Fields {
	active := int64(0)
	if p.Active {
		active = 1
	}
	return memengine.Fields{
		PersonIDProp:     int64(p.ID),
		PersonNameProp:   p.Name,
		PersonEmailProp:  p.Email,
		PersonAgeProp:    p.Age,
		PersonScoreProp:  p.Score,
		PersonActiveProp: active,
		PersonTokenProp:  p.Token,
	}
}

// PersonCodec implements codec.Entity for Person over the engine row format.
type PersonCodec struct{}

// Encode implements codec.Entity.
func (PersonCodec) Encode(b *buf.Builder, p Person) ([]byte, error) {
	return memengine.EncodeFields(b, p.Fields())
}

// Decode implements codec.Entity.
func (PersonCodec) Decode(data []byte) (Person, error) {
	f, err := memengine.DecodeFields(data)
	if err != nil {
		return Person{}, err
	}
	p := Person{}
	if v, ok := f[PersonIDProp].(int64); ok {
		p.ID = uint64(v)
	}
	if v, ok := f[PersonNameProp].(string); ok {
		p.Name = v
	}
	if v, ok := f[PersonEmailProp].(string); ok {
		p.Email = v
	}
	if v, ok := f[PersonAgeProp].(int64); ok {
		p.Age = v
	}
	if v, ok := f[PersonScoreProp].(float64); ok {
		p.Score = v
	}
	if v, ok := f[PersonActiveProp].(int64); ok {
		p.Active = v != 0
	}
	if v, ok := f[PersonTokenProp].([]byte); ok {
		p.Token = append([]byte(nil), v...)
	}
	return p, nil
}

// RegisterPerson declares the Person schema on an engine.
func RegisterPerson(e *memengine.Engine) {
	e.RegisterEntity(PersonEntity,
		PersonID, PersonName, PersonEmail, PersonAge,
		PersonScore, PersonActive, PersonToken)
}

// SeedPeople stores the given people, failing the test on error.
func SeedPeople(tb testing.TB, e *memengine.Engine, people []Person) {
	tb.Helper()
	for _, p := range people {
		if err := e.Put(PersonEntity, p.ID, p.Fields()); err != nil {
			tb.Fatalf("seed person %d: %v", p.ID, err)
		}
	}
}

// BrokenCodec fails every decode; it exercises decode error paths.
type BrokenCodec struct{}

// Encode implements codec.Entity.
func (BrokenCodec) Encode(b *buf.Builder, p Person) ([]byte, error) {
	return PersonCodec{}.Encode(b, p)
}

// Decode implements codec.Entity.
func (BrokenCodec) Decode(data []byte) (Person, error) {
	return Person{}, fmt.Errorf("broken codec: refusing %d bytes", len(data))
}
