package buf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakdb/oak/resource"
)

func TestBuilder_ReuseAcrossSessions(t *testing.T) {
	b := NewBuilder(64, 1024, nil)

	require.NoError(t, b.Reset())
	require.NoError(t, b.Append(bytes.Repeat([]byte{1}, 100)))
	grownCap := b.Cap()
	assert.GreaterOrEqual(t, grownCap, 100)
	b.End()

	// Sessions under the ceiling never grow the backing array again.
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Reset())
		require.NoError(t, b.Append(bytes.Repeat([]byte{2}, 100)))
		assert.Equal(t, grownCap, b.Cap())
		b.End()
	}
}

func TestBuilder_CeilingRecreatesAtInitialSize(t *testing.T) {
	b := NewBuilder(64, 256, nil)

	// One oversized session grows past the ceiling.
	require.NoError(t, b.Reset())
	require.NoError(t, b.Append(make([]byte, 1000)))
	assert.Greater(t, b.Cap(), 256)
	b.End()

	// The next session restarts at the initial size.
	require.NoError(t, b.Reset())
	assert.Equal(t, 64, b.Cap())
	require.NoError(t, b.Append(make([]byte, 32)))
	assert.Equal(t, 64, b.Cap())
	b.End()
}

func TestBuilder_MemoryAccounting(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	b := NewBuilder(64, 256, rc)

	require.NoError(t, b.Reset())
	assert.Equal(t, int64(64), rc.MemoryUsage())

	require.NoError(t, b.Append(make([]byte, 1000)))
	assert.Equal(t, int64(b.Cap()), rc.MemoryUsage())

	b.End() // past ceiling: released
	assert.Equal(t, int64(0), rc.MemoryUsage())

	require.NoError(t, b.Reset())
	assert.Equal(t, int64(64), rc.MemoryUsage())

	b.Close()
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestBuilder_MemoryLimit(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 128})
	b := NewBuilder(64, 1024, rc)

	require.NoError(t, b.Reset())
	err := b.Append(make([]byte, 4096))
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	b.Close()
}

func TestBuilder_AppendEncodings(t *testing.T) {
	b := NewBuilder(0, 0, nil)
	require.NoError(t, b.Reset())
	require.NoError(t, b.AppendByte(0x7f))
	require.NoError(t, b.AppendUint32(0x01020304))
	require.NoError(t, b.AppendUint64(0x1122334455667788))

	want := []byte{
		0x7f,
		0x04, 0x03, 0x02, 0x01,
		0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11,
	}
	assert.Equal(t, want, b.Bytes())
	assert.Equal(t, len(want), b.Len())
	b.End()
}
