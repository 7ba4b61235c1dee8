package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/oakdb/oak"
	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/internal/buf"
	"github.com/oakdb/oak/native"
	"github.com/oakdb/oak/txn"
)

// SessionState tracks one isolated stream's handshake state machine.
type SessionState int32

const (
	// StateAwaitingHandshake: the worker has not yet sent its channel.
	StateAwaitingHandshake SessionState = iota
	// StateStreaming: rows are being forwarded.
	StateStreaming
	// StateAwaitingAck: the worker signaled done and is blocked on the
	// caller's acknowledgment before closing its transaction.
	StateAwaitingAck
	// StateClosed: the session is over and all resources are released.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting-handshake"
	case StateStreaming:
		return "streaming"
	case StateAwaitingAck:
		return "awaiting-ack"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// rowMsg forwards one matched row as a raw address and size, not a copy.
// The memory belongs to the worker's transaction snapshot; it is valid only
// until the worker resumes, which the worker won't do before the caller's
// per-row resume signal.
type rowMsg struct {
	addr unsafe.Pointer
	size int
}

// borrow wraps a row slice as an address+size message without copying.
func borrow(row []byte) rowMsg {
	if len(row) == 0 {
		return rowMsg{}
	}
	return rowMsg{addr: unsafe.Pointer(&row[0]), size: len(row)} //nolint:gosec // handoff by address
}

// doneMsg is the worker's completion signal. After sending it the worker
// blocks until the caller acknowledges, keeping the transaction snapshot
// alive until every forwarded row has been decoded.
type doneMsg struct {
	err error
}

// IsolatedStream delivers query matches from a separate worker that shares
// the caller's compiled query and holds its own read transaction for the
// whole traversal. Rows cross the worker boundary as borrowed buffers under
// a rendezvous protocol, trading per-row copies for strict handoff
// discipline.
type IsolatedStream[T any] struct {
	session string
	state   atomic.Int32

	out    chan StreamResult[T]
	cancel chan struct{} // closed by Cancel; exit signal to the worker
	once   sync.Once
	rows   uint64
}

// State returns the session's current handshake state.
func (s *IsolatedStream[T]) State() SessionState {
	return SessionState(s.state.Load())
}

// Results is the delivery channel; closed when the session reaches
// StateClosed.
func (s *IsolatedStream[T]) Results() <-chan StreamResult[T] { return s.out }

// Session returns the session id used in log correlation.
func (s *IsolatedStream[T]) Session() string { return s.session }

// Cancel asks the worker to stop before its next forward. Idempotent. The
// session still runs its completion protocol, so resources are released
// exactly once whether termination was by completion, cancellation or error.
func (s *IsolatedStream[T]) Cancel() {
	s.once.Do(func() { close(s.cancel) })
}

// StreamIsolated starts a traversal on a separate worker.
//
// The worker is drawn from the store's worker pool and gated by the resource
// controller's worker budget; StreamIsolated blocks until a slot is free or
// ctx is done.
func (q *Query[T]) StreamIsolated(ctx context.Context) (*IsolatedStream[T], error) {
	if err := q.alive(); err != nil {
		return nil, err
	}

	rc := q.store().Resources()
	if err := rc.AcquireWorker(ctx); err != nil {
		return nil, err
	}

	s := &IsolatedStream[T]{
		session: uuid.NewString(),
		out:     make(chan StreamResult[T]),
		cancel:  make(chan struct{}),
	}

	logger := q.store().Logger().WithSession(s.session).WithQuery(int64(q.id))

	// The worker creates its own channel and hands it over as the
	// handshake; everything else flows through that channel.
	handshake := make(chan chan any, 1)
	resume := make(chan struct{})
	ack := make(chan struct{}, 1)

	w := &streamWorker{
		backend:   q.backend(),
		txns:      q.store().Txns(),
		qid:       q.id,
		handshake: handshake,
		resume:    resume,
		ack:       ack,
		cancel:    s.cancel,
		release:   rc.ReleaseWorker,
		logger:    logger,
	}
	if err := q.store().Submit(w.run); err != nil {
		rc.ReleaseWorker()
		return nil, err
	}

	go s.consume(ctx, q, handshake, resume, ack, logger)
	return s, nil
}

// streamWorker is the worker-side half of the handoff. It runs on the
// store's worker pool, opens a read-only transaction, traverses the shared
// query and forwards borrowed row buffers.
type streamWorker struct {
	backend   native.Backend
	txns      txn.Manager
	qid       native.QueryID
	handshake chan<- chan any
	resume    <-chan struct{}
	ack       <-chan struct{}
	cancel    <-chan struct{}
	release   func()
	logger    *oak.Logger
}

func (w *streamWorker) run() {
	defer w.release()

	data := make(chan any)
	w.handshake <- data

	err := w.txns.View(context.Background(), func(tx txn.Txn) error {
		visitErr := w.backend.Visit(w.qid, func(id core.ID, row []byte) bool {
			select {
			case <-w.cancel:
				// Exit signal observed before the next forward.
				return false
			case data <- borrow(row):
				// The caller decodes now; resuming before its signal would
				// invalidate the buffer under it.
				<-w.resume
				return true
			}
		})

		// Completion (or cancellation, or failure) always runs the
		// rendezvous: signal done, then hold the transaction open until the
		// caller acknowledges that its last decode finished.
		data <- doneMsg{err: visitErr}
		<-w.ack
		return visitErr
	})
	if err != nil {
		w.logger.Debug("stream worker finished with error", "err", err)
	}
}

func (s *IsolatedStream[T]) consume(
	ctx context.Context,
	q *Query[T],
	handshake <-chan chan any,
	resume chan<- struct{},
	ack chan<- struct{},
	logger *oak.Logger,
) {
	start := time.Now()
	reader := buf.NewReader(q.store().ReaderScratchSize())

	var streamErr error
	defer func() {
		s.state.Store(int32(StateClosed))
		close(s.out)
		q.store().Metrics().RecordStream(s.rows, time.Since(start), streamErr)
		logger.Debug("isolated stream closed", "rows", s.rows, "err", streamErr)
	}()

	data := <-handshake
	s.state.Store(int32(StateStreaming))
	logger.Debug("isolated stream handshake complete")

	canceled := false
	for msg := range data {
		switch m := msg.(type) {
		case rowMsg:
			// Decode eagerly: the buffer is borrowed from the worker's
			// snapshot and only guaranteed until the worker resumes.
			row := unsafe.Slice((*byte)(m.addr), m.size) //nolint:gosec // counterpart of the address handoff
			v, err := q.box.codec.Decode(reader.View(row))
			resume <- struct{}{}

			if err != nil {
				streamErr = oak.NewDecodeError(0, err)
				s.deliver(ctx, StreamResult[T]{Err: streamErr}, &canceled)
				s.Cancel()
				canceled = true
				continue // keep draining until the worker's done signal
			}
			if !canceled {
				// Row throttling happens after the resume signal so the
				// worker's snapshot is never held hostage by the limiter.
				if err := q.store().Resources().WaitRow(ctx); err != nil {
					s.Cancel()
					canceled = true
					continue
				}
				if s.deliver(ctx, StreamResult[T]{Value: v}, &canceled) {
					s.rows++
				} else {
					s.Cancel()
				}
			}

		case doneMsg:
			s.state.Store(int32(StateAwaitingAck))
			if m.err != nil && streamErr == nil {
				streamErr = m.err
				s.deliver(ctx, StreamResult[T]{Err: streamErr}, &canceled)
			}
			// Every forwarded row is decoded by now; releasing the worker's
			// snapshot is safe.
			ack <- struct{}{}
			return

		default:
			streamErr = oak.ErrStreamProtocol
			s.deliver(ctx, StreamResult[T]{Err: streamErr}, &canceled)
			s.Cancel()
			canceled = true
		}
	}
}

// deliver forwards one result unless the consumer is gone; it reports
// whether the result was accepted.
func (s *IsolatedStream[T]) deliver(ctx context.Context, r StreamResult[T], canceled *bool) bool {
	if *canceled {
		return false
	}
	select {
	case s.out <- r:
		return true
	case <-s.cancel:
		*canceled = true
		return false
	case <-ctx.Done():
		*canceled = true
		return false
	}
}
