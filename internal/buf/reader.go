package buf

// DefaultScratchSize is the decode scratch capacity, and with it the
// copy/zero-copy crossover: rows up to this size are copied into scratch,
// larger rows are viewed in place.
const DefaultScratchSize = 4096

// Reader is a fixed-size decode scratch buffer.
type Reader struct {
	scratch []byte
}

// NewReader creates a Reader with the given scratch capacity (the package
// default if size <= 0).
func NewReader(size int) *Reader {
	if size <= 0 {
		size = DefaultScratchSize
	}
	return &Reader{scratch: make([]byte, size)}
}

// View returns row's bytes for decoding. Rows that fit the scratch buffer
// are copied into it, detaching them from the (borrowed) source; larger rows
// are returned as a direct view over the source without copying. Either way
// the result is valid only until the next View call, or, for the zero-copy
// case, until the source buffer's owner reclaims it.
func (r *Reader) View(row []byte) []byte {
	if len(row) <= len(r.scratch) {
		n := copy(r.scratch, row)
		return r.scratch[:n]
	}
	return row
}

// ScratchSize returns the scratch capacity.
func (r *Reader) ScratchSize() int { return len(r.scratch) }
