package oak

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryClosed is returned when an operation is attempted on a closed
	// query.
	ErrQueryClosed = errors.New("query closed")

	// ErrNonUnique is returned by FindUnique when more than one object
	// matches.
	ErrNonUnique = errors.New("query matched more than one object")

	// ErrUnsupported is returned when an operator/type pairing has no native
	// counterpart (e.g. equality on floating-point properties).
	ErrUnsupported = errors.New("unsupported operation")

	// ErrStreamProtocol is returned when a stream delivers a message of an
	// unexpected shape.
	ErrStreamProtocol = errors.New("stream protocol violation")
)

// NativeError reports a failed call into the storage engine, carrying the
// diagnostic text retrieved from the engine's error side channel.
type NativeError struct {
	Op         string // the protocol call that failed
	Diagnostic string // side-channel message, may be empty
}

func (e *NativeError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("native call %s failed", e.Op)
	}
	return fmt.Sprintf("native call %s failed: %s", e.Op, e.Diagnostic)
}

// DecodeError reports an entity codec failure for one object.
//
// The codec's underlying error can be accessed via errors.Unwrap.
type DecodeError struct {
	ID    uint64
	cause error
}

// NewDecodeError wraps a codec failure for the object with the given id.
func NewDecodeError(id uint64, cause error) *DecodeError {
	return &DecodeError{ID: id, cause: cause}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding object %d: %v", e.ID, e.cause)
}

func (e *DecodeError) Unwrap() error { return e.cause }
