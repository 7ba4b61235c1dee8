package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oakdb/oak"
	"github.com/oakdb/oak/internal/buf"
	"github.com/oakdb/oak/native"
)

// streamBuffer is the native-to-bridge channel depth: deep enough that the
// engine rarely stalls on a slow decoder, small enough to bound borrowed
// row copies in flight.
const streamBuffer = 16

// StreamResult is one delivery from a stream: a decoded value or the typed
// error that terminated the stream.
type StreamResult[T any] struct {
	Value T
	Err   error
}

// Stream delivers query matches asynchronously over an in-process channel.
//
// The native traversal pushes raw row buffers into an internal channel; a
// bridge goroutine decodes each row and forwards it on Results, which is
// closed when the stream ends for any reason. A stream error terminates
// only this stream, never its siblings.
type Stream[T any] struct {
	session string
	out     chan StreamResult[T]
	done    chan struct{}

	sid    native.StreamID
	be     native.Backend
	cancel sync.Once
	rows   atomic.Uint64
}

// Stream starts an asynchronous traversal of q's matches.
//
// The caller must drain Results or call Cancel; otherwise the bridge
// goroutine stays blocked on delivery.
func (q *Query[T]) Stream(ctx context.Context) (*Stream[T], error) {
	if err := q.alive(); err != nil {
		return nil, err
	}

	in := make(chan any, streamBuffer)
	sid := q.backend().OpenStream(q.id, in)
	if sid == 0 {
		return nil, nativeErr(q.backend(), "OpenStream")
	}

	s := &Stream[T]{
		session: uuid.NewString(),
		out:     make(chan StreamResult[T]),
		done:    make(chan struct{}),
		sid:     sid,
		be:      q.backend(),
	}

	logger := q.store().Logger().WithSession(s.session).WithQuery(int64(q.id))
	logger.Debug("stream opened")

	go s.run(ctx, q, in, logger)
	return s, nil
}

// Results is the delivery channel. It closes when the stream completes, is
// canceled, or fails; in the failure case the last result carries the error.
func (s *Stream[T]) Results() <-chan StreamResult[T] { return s.out }

// Session returns the correlation id attached to this stream's log records.
func (s *Stream[T]) Session() string { return s.session }

// Cancel stops the stream and releases the native stream handle. Safe to
// call multiple times and from any goroutine.
func (s *Stream[T]) Cancel() {
	s.cancel.Do(func() {
		close(s.done)
		// Closing the handle stops the engine's pushes; the engine then
		// closes its channel, which unblocks the bridge goroutine.
		_ = s.be.CloseStream(s.sid)
	})
}

func (s *Stream[T]) run(ctx context.Context, q *Query[T], in <-chan any, logger *oak.Logger) {
	start := time.Now()
	reader := buf.NewReader(q.store().ReaderScratchSize())

	var streamErr error
	defer func() {
		s.Cancel()
		close(s.out)
		q.store().Metrics().RecordStream(s.rows.Load(), time.Since(start), streamErr)
		logger.Debug("stream closed", "rows", s.rows.Load(), "err", streamErr)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return // engine closed the channel after cancellation
			}
			switch m := msg.(type) {
			case nil:
				return // end of stream
			case []byte:
				v, err := q.box.codec.Decode(reader.View(m))
				if err != nil {
					streamErr = oak.NewDecodeError(0, err)
					s.deliver(ctx, StreamResult[T]{Err: streamErr})
					return
				}
				if err := q.store().Resources().WaitRow(ctx); err != nil {
					return
				}
				if !s.deliver(ctx, StreamResult[T]{Value: v}) {
					return
				}
				s.rows.Add(1)
			case string:
				streamErr = &oak.NativeError{Op: "stream", Diagnostic: m}
				s.deliver(ctx, StreamResult[T]{Err: streamErr})
				return
			default:
				streamErr = oak.ErrStreamProtocol
				s.deliver(ctx, StreamResult[T]{Err: streamErr})
				return
			}
		}
	}
}

func (s *Stream[T]) deliver(ctx context.Context, r StreamResult[T]) bool {
	select {
	case s.out <- r:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}
