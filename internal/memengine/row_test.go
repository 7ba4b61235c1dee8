package memengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakdb/oak/internal/buf"
)

func TestFieldsRoundTrip(t *testing.T) {
	in := Fields{
		1: int64(-42),
		2: "hello",
		3: 3.5,
		4: []byte{0xDE, 0xAD},
		5: int64(1),
	}

	b := buf.NewBuilder(0, 0, nil)
	raw, err := EncodeFields(b, in)
	require.NoError(t, err)

	out, err := DecodeFields(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeFieldsDeterministic(t *testing.T) {
	in := Fields{3: int64(3), 1: int64(1), 2: int64(2)}

	b := buf.NewBuilder(0, 0, nil)
	first, err := EncodeFields(b, in)
	require.NoError(t, err)
	snapshot := append([]byte(nil), first...)
	b.End()

	second, err := EncodeFields(b, in)
	require.NoError(t, err)
	assert.Equal(t, snapshot, second)
}

func TestDecodeFieldsTruncated(t *testing.T) {
	b := buf.NewBuilder(0, 0, nil)
	raw, err := EncodeFields(b, Fields{1: "payload"})
	require.NoError(t, err)

	_, err = DecodeFields(raw[:len(raw)-3])
	assert.Error(t, err)
}
