package oak

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordBuild is called after each query compilation.
	// duration is the total time taken, err is nil if successful.
	RecordBuild(duration time.Duration, err error)

	// RecordExecution is called after each count/remove/find call.
	// op names the operation, rows is the number of results.
	RecordExecution(op string, rows uint64, duration time.Duration, err error)

	// RecordStream is called when a stream session terminates.
	// rows is the number of rows delivered before termination.
	RecordStream(rows uint64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(time.Duration, error)                     {}
func (NoopMetricsCollector) RecordExecution(string, uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordStream(uint64, time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildTotalNanos atomic.Int64

	ExecutionCount  atomic.Int64
	ExecutionErrors atomic.Int64
	RowsReturned    atomic.Int64

	StreamCount    atomic.Int64
	StreamErrors   atomic.Int64
	RowsStreamed   atomic.Int64
	StreamDuration atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordExecution implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExecution(_ string, rows uint64, _ time.Duration, err error) {
	b.ExecutionCount.Add(1)
	b.RowsReturned.Add(int64(rows))
	if err != nil {
		b.ExecutionErrors.Add(1)
	}
}

// RecordStream implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStream(rows uint64, duration time.Duration, err error) {
	b.StreamCount.Add(1)
	b.RowsStreamed.Add(int64(rows))
	b.StreamDuration.Add(duration.Nanoseconds())
	if err != nil {
		b.StreamErrors.Add(1)
	}
}
