// Package buf provides the reusable allocations behind row encode and decode.
//
// Builder keeps one growable backing array alive across encode sessions;
// Reader keeps one fixed scratch array for decode. Both exist to avoid a
// fresh allocation per row on the hot path. Neither type is goroutine safe;
// each instance is exclusively owned by one encoder or one reader.
package buf

import (
	"encoding/binary"

	"github.com/oakdb/oak/resource"
)

const (
	// DefaultInitialSize is the builder's starting capacity.
	DefaultInitialSize = 1024

	// DefaultCeiling bounds the builder's steady-state capacity. A session
	// may grow past it to absorb an oversized row, but the backing array is
	// released afterwards and recreated at the initial size on next use.
	DefaultCeiling = 1 << 20
)

// Builder is a growable encode buffer retained across sessions.
type Builder struct {
	data    []byte
	initial int
	ceiling int
	rc      *resource.Controller
}

// NewBuilder creates a Builder. initial and ceiling fall back to the package
// defaults when <= 0. rc may be nil.
func NewBuilder(initial, ceiling int, rc *resource.Controller) *Builder {
	if initial <= 0 {
		initial = DefaultInitialSize
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if ceiling < initial {
		ceiling = initial
	}
	return &Builder{initial: initial, ceiling: ceiling, rc: rc}
}

// Reset begins a new encode session. The backing array is reused; content
// from the previous session becomes invalid.
func (b *Builder) Reset() error {
	if b.data == nil {
		if err := b.rc.AcquireMemory(int64(b.initial)); err != nil {
			return err
		}
		b.data = make([]byte, 0, b.initial)
	}
	b.data = b.data[:0]
	return nil
}

func (b *Builder) grow(n int) error {
	need := len(b.data) + n
	if need <= cap(b.data) {
		return nil
	}
	newCap := cap(b.data) * 2
	if newCap < need {
		newCap = need
	}
	if err := b.rc.AcquireMemory(int64(newCap - cap(b.data))); err != nil {
		return err
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
	return nil
}

// Append writes p into the current session, growing the backing array by
// reallocation if needed.
func (b *Builder) Append(p []byte) error {
	if err := b.grow(len(p)); err != nil {
		return err
	}
	b.data = append(b.data, p...)
	return nil
}

// AppendByte writes a single byte.
func (b *Builder) AppendByte(c byte) error {
	if err := b.grow(1); err != nil {
		return err
	}
	b.data = append(b.data, c)
	return nil
}

// AppendUint32 writes v little-endian.
func (b *Builder) AppendUint32(v uint32) error {
	if err := b.grow(4); err != nil {
		return err
	}
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
	return nil
}

// AppendUint64 writes v little-endian.
func (b *Builder) AppendUint64(v uint64) error {
	if err := b.grow(8); err != nil {
		return err
	}
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
	return nil
}

// Bytes returns the current session's content. The slice is borrowed: it is
// valid only until the next Reset or End.
func (b *Builder) Bytes() []byte { return b.data }

// Len returns the current session length.
func (b *Builder) Len() int { return len(b.data) }

// Cap returns the backing array capacity.
func (b *Builder) Cap() int { return cap(b.data) }

// End finishes the session. If the backing array grew past the ceiling it is
// released so the next session restarts at the initial size; otherwise it is
// retained as is.
func (b *Builder) End() {
	if cap(b.data) > b.ceiling {
		b.rc.ReleaseMemory(int64(cap(b.data)))
		b.data = nil
	}
}

// Close releases the backing array.
func (b *Builder) Close() {
	if b.data != nil {
		b.rc.ReleaseMemory(int64(cap(b.data)))
		b.data = nil
	}
}
