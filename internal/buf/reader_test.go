package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReader_SmallRowIsCopied(t *testing.T) {
	r := NewReader(16)
	row := []byte("hello")

	view := r.View(row)
	assert.Equal(t, row, view)

	// Mutating the source must not reach the view.
	row[0] = 'X'
	assert.Equal(t, byte('h'), view[0])
}

func TestReader_LargeRowIsZeroCopy(t *testing.T) {
	r := NewReader(4)
	row := []byte("a large row")

	view := r.View(row)
	assert.Same(t, &row[0], &view[0])
}

func TestReader_BoundaryFits(t *testing.T) {
	r := NewReader(4)
	row := []byte{1, 2, 3, 4}

	view := r.View(row)
	assert.Equal(t, row, view)
	assert.NotSame(t, &row[0], &view[0])
}

func TestReader_Defaults(t *testing.T) {
	r := NewReader(0)
	assert.Equal(t, DefaultScratchSize, r.ScratchSize())
}
