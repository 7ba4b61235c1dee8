package oak

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicMetricsCollector(t *testing.T) {
	m := &BasicMetricsCollector{}

	m.RecordBuild(time.Millisecond, nil)
	m.RecordBuild(time.Millisecond, errors.New("boom"))
	assert.Equal(t, int64(2), m.BuildCount.Load())
	assert.Equal(t, int64(1), m.BuildErrors.Load())

	m.RecordExecution("find", 10, time.Millisecond, nil)
	m.RecordExecution("count", 0, time.Millisecond, errors.New("boom"))
	assert.Equal(t, int64(2), m.ExecutionCount.Load())
	assert.Equal(t, int64(1), m.ExecutionErrors.Load())
	assert.Equal(t, int64(10), m.RowsReturned.Load())

	m.RecordStream(5, time.Second, nil)
	assert.Equal(t, int64(1), m.StreamCount.Load())
	assert.Equal(t, int64(5), m.RowsStreamed.Load())
}

func TestNoopMetricsCollector(t *testing.T) {
	var m MetricsCollector = NoopMetricsCollector{}
	m.RecordBuild(0, nil)
	m.RecordExecution("find", 0, 0, nil)
	m.RecordStream(0, 0, nil)
}
