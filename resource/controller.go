// Package resource tracks the memory and concurrency budget shared by the
// query layer's reusable buffers and stream workers.
package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a buffer grow would push managed
// memory past the configured limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed buffer memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxStreamWorkers is the maximum number of concurrent isolated stream
	// workers. If 0, defaults to 1.
	MaxStreamWorkers int64

	// RowRateLimit is the maximum number of rows per second a stream may
	// forward. If 0, unlimited.
	RowRateLimit int64
}

// Controller manages the resources shared across one store's queries.
// All methods are safe on a nil receiver; a nil controller means "track
// nothing, allow everything".
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	workerSem *semaphore.Weighted

	rowLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxStreamWorkers <= 0 {
		cfg.MaxStreamWorkers = 1
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.MaxStreamWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.RowRateLimit > 0 {
		c.rowLimiter = rate.NewLimiter(rate.Limit(cfg.RowRateLimit), int(cfg.RowRateLimit))
	}

	return c
}

// AcquireMemory attempts to reserve buffer memory.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
// Non-blocking; callers control retry policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved buffer memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current managed memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireWorker reserves a stream worker slot, blocking until one is free
// or ctx is done.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workerSem.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a stream worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workerSem.TryAcquire(1)
}

// ReleaseWorker releases a stream worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workerSem.Release(1)
}

// WaitRow blocks until the row rate limit admits one more forwarded row.
func (c *Controller) WaitRow(ctx context.Context) error {
	if c == nil || c.rowLimiter == nil {
		return nil
	}
	return c.rowLimiter.Wait(ctx)
}

// AllowRow reports whether one more row may be forwarded right now.
func (c *Controller) AllowRow() bool {
	if c == nil || c.rowLimiter == nil {
		return true
	}
	return c.rowLimiter.AllowN(time.Now(), 1)
}
