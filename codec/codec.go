// Package codec defines the entity row codec boundary and the built-in row
// compressors.
//
// The entity byte format is owned by generated bindings; this layer treats
// it as opaque. Compressor selection is a breaking-change boundary: rows
// written with one compressor may not decode under another, so engines that
// compress at rest store the compressor name next to the data.
package codec

import (
	"github.com/oakdb/oak/internal/buf"
)

// Entity encodes and decodes one entity type.
//
// Decode receives a borrowed row buffer; the returned value must not retain
// it. Encode writes through the shared builder buffer and returns the encoded
// row, which stays valid until the builder's next session.
type Entity[T any] interface {
	Decode(data []byte) (T, error)
	Encode(b *buf.Builder, v T) ([]byte, error)
}

// Compressor compresses row payloads at rest.
// Implementations must be safe for concurrent use.
type Compressor interface {
	// Compress appends the compressed form of src to dst.
	Compress(dst, src []byte) ([]byte, error)
	// Decompress appends the decompressed form of src to dst.
	Decompress(dst, src []byte) ([]byte, error)
	Name() string
}

// ByName returns a built-in compressor by its stable name.
func ByName(name string) (Compressor, bool) {
	switch name {
	case "s2":
		return S2{}, true
	case "lz4":
		return LZ4{}, true
	default:
		return nil, false
	}
}
