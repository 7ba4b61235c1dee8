package oak

import (
	"errors"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/oakdb/oak/native"
	"github.com/oakdb/oak/resource"
	"github.com/oakdb/oak/txn"
)

// ErrStoreClosed is returned when an operation is attempted on a closed
// store binding.
var ErrStoreClosed = errors.New("store closed")

// Store binds one opened database to the query layer: the native protocol
// backend, the transaction manager, and the store-wide defaults queries
// inherit. Store construction and schema loading happen elsewhere; Store
// only carries the references the query layer consumes.
type Store struct {
	backend native.Backend
	txns    txn.Manager
	opts    options

	workers *ants.Pool
	closed  atomic.Bool
}

// NewStore creates a store binding over an opened backend.
func NewStore(backend native.Backend, txns txn.Manager, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("oak: nil backend")
	}
	if txns == nil {
		return nil, errors.New("oak: nil transaction manager")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := ants.NewPool(o.streamWorkers, ants.WithNonblocking(false))
	if err != nil {
		return nil, err
	}

	return &Store{
		backend: backend,
		txns:    txns,
		opts:    o,
		workers: pool,
	}, nil
}

// Backend returns the native protocol backend.
func (s *Store) Backend() native.Backend { return s.backend }

// Txns returns the transaction manager.
func (s *Store) Txns() txn.Manager { return s.txns }

// Logger returns the store logger.
func (s *Store) Logger() *Logger { return s.opts.logger }

// Metrics returns the metrics sink.
func (s *Store) Metrics() MetricsCollector { return s.opts.metrics }

// Resources returns the resource controller; may be nil.
func (s *Store) Resources() *resource.Controller { return s.opts.resources }

// CaseSensitive returns the store-wide default for string conditions.
func (s *Store) CaseSensitive() bool { return s.opts.caseSensitive }

// BuilderBufferConfig returns the encode buffer sizing (0 means default).
func (s *Store) BuilderBufferConfig() (initial, ceiling int) {
	return s.opts.builderInitial, s.opts.builderCeiling
}

// ReaderScratchSize returns the decode scratch size (0 means default).
func (s *Store) ReaderScratchSize() int { return s.opts.readerScratch }

// Submit hands fn to the store's stream worker pool, blocking while all
// workers are busy.
func (s *Store) Submit(fn func()) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return s.workers.Submit(fn)
}

// Close releases the worker pool. Idempotent. Queries built from this store
// must be closed separately.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.workers.Release()
	return nil
}
