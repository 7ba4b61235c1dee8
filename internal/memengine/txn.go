package memengine

import (
	"context"
	"sync/atomic"

	"github.com/oakdb/oak/txn"
)

// memTxn is a read transaction over the engine's current snapshot. Holding
// one blocks writers (Put, Remove) until it closes.
type memTxn struct {
	id uint64
}

func (t *memTxn) ID() uint64 { return t.id }

type txnManager struct {
	e   *Engine
	seq atomic.Uint64
	// open counts transactions currently inside View. Buffers registered
	// during any View are scribbled when the last one closes.
	open atomic.Int64
}

// Txns returns the engine's transaction manager.
func (e *Engine) Txns() txn.Manager {
	return &txnManager{e: e}
}

// View implements txn.Manager.
func (m *txnManager) View(ctx context.Context, fn func(txn.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.e.txnLock.RLock()
	m.open.Add(1)
	t := &memTxn{id: m.seq.Add(1)}

	err := fn(t)

	last := m.open.Add(-1) == 0
	m.e.txnLock.RUnlock()
	if last {
		m.e.poisonServed()
	}
	return err
}

// registerServed records a buffer that was handed out during row iteration
// so it can be poisoned once the enclosing transaction closes. No-op unless
// poisoning is enabled.
func (e *Engine) registerServed(b []byte) {
	if !e.poison || len(b) == 0 {
		return
	}
	e.mu.Lock()
	e.poisonList = append(e.poisonList, b)
	e.mu.Unlock()
}

// poisonServed overwrites every registered buffer with 0xDD. A caller that
// kept a borrowed row past its transaction sees garbage instead of stale
// data, which is deliberately loud.
func (e *Engine) poisonServed() {
	if !e.poison {
		return
	}
	e.mu.Lock()
	list := e.poisonList
	e.poisonList = nil
	e.mu.Unlock()
	for _, b := range list {
		for i := range b {
			b[i] = 0xDD
		}
	}
}
