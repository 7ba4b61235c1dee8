package query

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oakdb/oak"
	"github.com/oakdb/oak/codec"
	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/internal/buf"
	"github.com/oakdb/oak/native"
	"github.com/oakdb/oak/txn"
)

// Box binds one entity type to a store: its schema identity and its codec.
// Boxes are cheap; create one per entity type and share it.
type Box[T any] struct {
	store  *oak.Store
	entity core.EntityID
	codec  codec.Entity[T]

	encMu sync.Mutex
	enc   *buf.Builder
}

// NewBox creates a box for one entity type.
func NewBox[T any](store *oak.Store, entity core.EntityID, c codec.Entity[T]) *Box[T] {
	initial, ceiling := store.BuilderBufferConfig()
	return &Box[T]{
		store:  store,
		entity: entity,
		codec:  c,
		enc:    buf.NewBuilder(initial, ceiling, store.Resources()),
	}
}

// Encode serializes v through the box's reusable encode buffer and returns
// an owned copy of the row. Safe for concurrent use.
func (b *Box[T]) Encode(v T) ([]byte, error) {
	b.encMu.Lock()
	defer b.encMu.Unlock()

	raw, err := b.codec.Encode(b.enc, v)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), raw...)
	b.enc.End()
	return out, nil
}

// Store returns the owning store binding.
func (b *Box[T]) Store() *oak.Store { return b.store }

// Query compiles cond into an executable query. A nil condition matches all
// objects of the entity. The returned query owns one native handle and must
// be closed.
func (b *Box[T]) Query(cond *Condition) (*Query[T], error) {
	start := time.Now()
	q, err := b.build(cond)
	b.store.Metrics().RecordBuild(time.Since(start), err)
	return q, err
}

func (b *Box[T]) build(cond *Condition) (*Query[T], error) {
	be := b.store.Backend()

	// Invalid conditions abort before the backend sees anything.
	if cond != nil {
		if err := cond.firstErr(); err != nil {
			return nil, err
		}
	}

	bid := be.NewBuilder(b.entity)
	if bid == 0 {
		return nil, nativeErr(be, "NewBuilder")
	}
	defer be.CloseBuilder(bid)

	if cond != nil {
		cb := &builder{be: be, handle: bid, caseSensitive: b.store.CaseSensitive()}
		if _, err := cb.compile(cond, true); err != nil {
			return nil, err
		}
	}

	qid := be.BuildQuery(bid)
	if qid == 0 {
		return nil, nativeErr(be, "BuildQuery")
	}

	q := &Query[T]{
		box:    b,
		id:     qid,
		reader: buf.NewReader(b.store.ReaderScratchSize()),
	}
	armLeakCheck(q)

	b.store.Logger().WithEntity(uint32(b.entity)).WithQuery(int64(qid)).
		Debug("query compiled")
	return q, nil
}

// Query owns one compiled native query. It serves one logical caller at a
// time; concurrent use requires external synchronization. Close releases
// the native handle and is idempotent.
type Query[T any] struct {
	box    *Box[T]
	id     native.QueryID
	reader *buf.Reader
	closed atomic.Bool
}

// liveness fences every operation on the Open state.
func (q *Query[T]) alive() error {
	if q.closed.Load() {
		return oak.ErrQueryClosed
	}
	return nil
}

// Offset skips the first n matches on subsequent executions. 0 resets to
// "from the start".
func (q *Query[T]) Offset(n uint64) error {
	if err := q.alive(); err != nil {
		return err
	}
	return q.backend().SetOffset(q.id, n)
}

// Limit caps the number of matches on subsequent executions. 0 resets to
// "no limit".
func (q *Query[T]) Limit(n uint64) error {
	if err := q.alive(); err != nil {
		return err
	}
	return q.backend().SetLimit(q.id, n)
}

// Count returns the number of matching objects.
func (q *Query[T]) Count(ctx context.Context) (uint64, error) {
	if err := q.alive(); err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := q.backend().Count(q.id)
	q.store().Metrics().RecordExecution("count", n, time.Since(start), err)
	return n, err
}

// Remove deletes all matching objects and returns the removed count.
func (q *Query[T]) Remove(ctx context.Context) (uint64, error) {
	if err := q.alive(); err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := q.backend().Remove(q.id)
	q.store().Metrics().RecordExecution("remove", n, time.Since(start), err)
	return n, err
}

// Find materializes all matches, decoded, in native traversal order.
//
// A decode failure stops the traversal; it is recorded outside the native
// callback and returned only after the visit call comes back, since failing
// across the native call boundary is unsafe.
func (q *Query[T]) Find(ctx context.Context) ([]T, error) {
	if err := q.alive(); err != nil {
		return nil, err
	}
	start := time.Now()

	var out []T
	var decodeErr error
	err := q.store().Txns().View(ctx, func(tx txn.Txn) error {
		return q.backend().Visit(q.id, func(id core.ID, row []byte) bool {
			v, err := q.box.codec.Decode(q.reader.View(row))
			if err != nil {
				decodeErr = oak.NewDecodeError(id, err)
				return false
			}
			out = append(out, v)
			return true
		})
	})
	if err == nil {
		err = decodeErr
	}

	q.store().Metrics().RecordExecution("find", uint64(len(out)), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindFirst returns the first match in traversal order, with ok reporting
// whether any object matched.
func (q *Query[T]) FindFirst(ctx context.Context) (T, bool, error) {
	var zero T
	if err := q.alive(); err != nil {
		return zero, false, err
	}

	var (
		value     T
		found     bool
		decodeErr error
	)
	err := q.store().Txns().View(ctx, func(tx txn.Txn) error {
		return q.backend().Visit(q.id, func(id core.ID, row []byte) bool {
			v, err := q.box.codec.Decode(q.reader.View(row))
			if err != nil {
				decodeErr = oak.NewDecodeError(id, err)
				return false
			}
			value, found = v, true
			return false // one result is enough
		})
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return zero, false, err
	}
	return value, found, nil
}

// FindUnique returns the single match. Zero matches reports ok=false; more
// than one match fails with ErrNonUnique.
func (q *Query[T]) FindUnique(ctx context.Context) (T, bool, error) {
	var zero T
	if err := q.alive(); err != nil {
		return zero, false, err
	}

	var (
		value     T
		seen      int
		decodeErr error
	)
	err := q.store().Txns().View(ctx, func(tx txn.Txn) error {
		return q.backend().Visit(q.id, func(id core.ID, row []byte) bool {
			seen++
			if seen > 1 {
				return false // a second match already decides the outcome
			}
			v, err := q.box.codec.Decode(q.reader.View(row))
			if err != nil {
				decodeErr = oak.NewDecodeError(id, err)
				return false
			}
			value = v
			return true
		})
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return zero, false, err
	}
	if seen > 1 {
		return zero, false, oak.ErrNonUnique
	}
	return value, seen == 1, nil
}

// FindIDs returns the identifiers of all matches without decoding rows.
func (q *Query[T]) FindIDs(ctx context.Context) ([]core.ID, error) {
	if err := q.alive(); err != nil {
		return nil, err
	}
	start := time.Now()
	ids, err := q.backend().FindIDs(q.id)
	q.store().Metrics().RecordExecution("find_ids", uint64(len(ids)), time.Since(start), err)
	return ids, err
}

// Describe returns the engine's diagnostic text for the compiled query.
func (q *Query[T]) Describe() (string, error) {
	if err := q.alive(); err != nil {
		return "", err
	}
	return q.backend().Describe(q.id)
}

// DescribeParams returns the engine's diagnostic text for the query's
// parameters, including aliases.
func (q *Query[T]) DescribeParams() (string, error) {
	if err := q.alive(); err != nil {
		return "", err
	}
	return q.backend().DescribeParams(q.id)
}

// Close releases the native query handle. Idempotent; the debug leak check
// is detached before the handle is released so a delayed finalizer pass can
// never observe, let alone double-release, a closed query.
func (q *Query[T]) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	disarmLeakCheck(q)
	return q.backend().CloseQuery(q.id)
}

func (q *Query[T]) backend() native.Backend { return q.box.store.Backend() }
func (q *Query[T]) store() *oak.Store       { return q.box.store }

// Leak checking is debug-only tooling: deterministic Close is the primary
// and only load-bearing release mechanism. When enabled, an armed finalizer
// reports queries that became unreachable while still open.

var (
	leakCheckEnabled atomic.Bool
	leakedQueries    atomic.Int64
)

// EnableLeakCheck toggles the debug leak detector for queries created
// afterwards.
func EnableLeakCheck(enabled bool) { leakCheckEnabled.Store(enabled) }

// LeakedQueries returns the number of queries reported leaked so far.
func LeakedQueries() int64 { return leakedQueries.Load() }

func armLeakCheck[T any](q *Query[T]) {
	if !leakCheckEnabled.Load() {
		return
	}
	logger := q.store().Logger()
	id := int64(q.id)
	runtime.SetFinalizer(q, func(q *Query[T]) {
		// Report only; the handle is deliberately not released here.
		leakedQueries.Add(1)
		logger.WithQuery(id).Warn("query leaked: unreachable without Close")
	})
}

func disarmLeakCheck[T any](q *Query[T]) {
	// Unconditional: the flag may have been toggled since the query was
	// armed.
	runtime.SetFinalizer(q, nil)
}
