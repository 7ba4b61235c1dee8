package memengine

import (
	"github.com/oakdb/oak/core"
	"github.com/oakdb/oak/native"
)

type streamState struct {
	stop chan struct{}
}

// OpenStream implements native.Backend. Rows are pushed onto out as owned
// copies, followed by a nil end-of-stream marker; out is closed afterwards.
// A failure during iteration is reported as a diagnostic string instead of
// the nil marker.
func (e *Engine) OpenStream(q native.QueryID, out chan<- any) native.StreamID {
	e.mu.Lock()
	qs, ok := e.queries[q]
	if !ok {
		e.setErr("unknown query %d", q)
		e.mu.Unlock()
		return 0
	}
	ids, stored, err := e.matchedStored(qs)
	if err != nil {
		e.setErr("stream snapshot: %v", err)
		e.mu.Unlock()
		return 0
	}
	e.nextStream++
	id := e.nextStream
	st := &streamState{stop: make(chan struct{})}
	e.streams[id] = st
	e.lastErr = ""
	e.mu.Unlock()

	go e.pump(st, ids, stored, out)
	return id
}

func (e *Engine) pump(st *streamState, ids []core.ID, stored [][]byte, out chan<- any) {
	defer close(out)

	var scratch []byte
	for i := range ids {
		var err error
		scratch, err = e.load(scratch[:0], stored[i])
		if err != nil {
			select {
			case out <- err.Error():
			case <-st.stop:
			}
			return
		}
		row := make([]byte, len(scratch))
		copy(row, scratch)
		select {
		case out <- row:
		case <-st.stop:
			return
		}
	}
	select {
	case out <- nil:
	case <-st.stop:
	}
}

// CloseStream implements native.Backend. Idempotent.
func (e *Engine) CloseStream(s native.StreamID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.streams[s]
	if !ok {
		return nil
	}
	close(st.stop)
	delete(e.streams, s)
	return nil
}
