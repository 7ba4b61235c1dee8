package memengine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/oakdb/oak/codec"
	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/internal/buf"
	"github.com/oakdb/oak/native"
)

// Option configures an Engine.
type Option func(*Engine)

// WithCompressor makes the engine compress rows at rest with the named
// built-in compressor ("s2" or "lz4").
func WithCompressor(name string) Option {
	return func(e *Engine) {
		if c, ok := codec.ByName(name); ok {
			e.comp = c
		}
	}
}

// WithPoison enables debug poisoning of served row buffers on transaction
// close.
func WithPoison(enabled bool) Option {
	return func(e *Engine) {
		e.poison = enabled
	}
}

type table struct {
	rows  map[core.ID][]byte // at-rest (possibly compressed) row payloads
	order []core.ID          // ascending object ids

	// removed tracks every id ever deleted; the engine never reuses ids.
	removed *bitset.BitSet
}

func (t *table) insertOrdered(id core.ID) {
	i := sort.Search(len(t.order), func(i int) bool { return t.order[i] >= id })
	if i < len(t.order) && t.order[i] == id {
		return
	}
	t.order = append(t.order, 0)
	copy(t.order[i+1:], t.order[i:])
	t.order[i] = id
}

func (t *table) deleteOrdered(id core.ID) {
	i := sort.Search(len(t.order), func(i int) bool { return t.order[i] >= id })
	if i < len(t.order) && t.order[i] == id {
		t.order = append(t.order[:i], t.order[i+1:]...)
	}
}

// Engine is the in-memory native backend. It also owns the transaction
// boundary; use Txns for the manager the query layer consumes.
type Engine struct {
	mu      sync.Mutex
	lastErr string

	schemas map[core.EntityID]map[core.PropertyID]core.Property
	tables  map[core.EntityID]*table

	builders map[native.BuilderID]*builderState
	queries  map[native.QueryID]*queryState
	streams  map[native.StreamID]*streamState

	nextBuilder native.BuilderID
	nextQuery   native.QueryID
	nextStream  native.StreamID
	nextCond    native.ConditionID

	// txnLock serializes writers against open read transactions.
	txnLock sync.RWMutex

	// poisonList collects buffers served while any transaction was open.
	poisonList [][]byte
	poison     bool

	enc  *buf.Builder
	comp codec.Compressor
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		schemas:  make(map[core.EntityID]map[core.PropertyID]core.Property),
		tables:   make(map[core.EntityID]*table),
		builders: make(map[native.BuilderID]*builderState),
		queries:  make(map[native.QueryID]*queryState),
		streams:  make(map[native.StreamID]*streamState),
		enc:      buf.NewBuilder(0, 0, nil),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RegisterEntity declares an entity type and its properties.
func (e *Engine) RegisterEntity(entity core.EntityID, props ...core.Property) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := make(map[core.PropertyID]core.Property, len(props))
	for _, p := range props {
		m[p.ID] = p
	}
	e.schemas[entity] = m
	e.tables[entity] = &table{
		rows:    make(map[core.ID][]byte),
		removed: bitset.New(64),
	}
}

// Put stores one object. IDs of removed objects are never reused.
func (e *Engine) Put(entity core.EntityID, id core.ID, fields Fields) error {
	e.txnLock.Lock()
	defer e.txnLock.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tables[entity]
	if !ok {
		return fmt.Errorf("memengine: unknown entity %d", entity)
	}
	if id == 0 {
		return fmt.Errorf("memengine: object id must be positive")
	}
	if t.removed.Test(uint(id)) {
		return fmt.Errorf("memengine: id %d was removed and cannot be reused", id)
	}

	raw, err := EncodeFields(e.enc, fields)
	if err != nil {
		return err
	}
	stored := append([]byte(nil), raw...)
	e.enc.End()

	if e.comp != nil {
		stored, err = e.comp.Compress(nil, stored)
		if err != nil {
			return err
		}
	}

	t.rows[id] = stored
	t.insertOrdered(id)
	return nil
}

// Size returns the number of stored objects for an entity.
func (e *Engine) Size(entity core.EntityID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables[entity]; ok {
		return len(t.order)
	}
	return 0
}

// setErr records the side-channel diagnostic and returns zero for use in
// handle-yielding failure paths.
func (e *Engine) setErr(format string, args ...any) native.ConditionID {
	e.lastErr = fmt.Sprintf(format, args...)
	return 0
}

// LastError implements native.Backend.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// load returns the decoded (uncompressed) form of a stored payload,
// appended to dst.
func (e *Engine) load(dst, stored []byte) ([]byte, error) {
	if e.comp != nil {
		return e.comp.Decompress(dst, stored)
	}
	return append(dst, stored...), nil
}

// fields decodes a stored payload for predicate evaluation.
func (e *Engine) fields(stored []byte) (Fields, error) {
	raw, err := e.load(nil, stored)
	if err != nil {
		return nil, err
	}
	return DecodeFields(raw)
}

var _ native.Backend = (*Engine)(nil)
