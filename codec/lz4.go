package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses rows with the lz4 block format. Blocks carry a 4-byte
// little-endian prefix with the uncompressed size, which lz4 needs to size
// the destination on decompress.
type LZ4 struct{}

// Compress appends the lz4-compressed form of src to dst.
func (LZ4) Compress(dst, src []byte) ([]byte, error) {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(src)))
	bound := lz4.CompressBlockBound(len(src))
	block := make([]byte, bound)
	var c lz4.Compressor
	n, err := c.CompressBlock(src, block)
	if err != nil {
		return dst, err
	}
	if n == 0 {
		// Incompressible: store raw, marked by a zero-length block.
		dst = binary.LittleEndian.AppendUint32(dst, 0)
		return append(dst, src...), nil
	}
	dst = binary.LittleEndian.AppendUint32(dst, uint32(n))
	return append(dst, block[:n]...), nil
}

// Decompress appends the decompressed form of src to dst.
func (LZ4) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) < 8 {
		return dst, fmt.Errorf("lz4: truncated block header (%d bytes)", len(src))
	}
	rawSize := binary.LittleEndian.Uint32(src)
	blockSize := binary.LittleEndian.Uint32(src[4:])
	body := src[8:]

	if blockSize == 0 {
		if uint32(len(body)) != rawSize {
			return dst, fmt.Errorf("lz4: raw block size mismatch: header %d, body %d", rawSize, len(body))
		}
		return append(dst, body...), nil
	}
	if uint32(len(body)) != blockSize {
		return dst, fmt.Errorf("lz4: block size mismatch: header %d, body %d", blockSize, len(body))
	}

	out := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(body, out)
	if err != nil {
		return dst, err
	}
	return append(dst, out[:n]...), nil
}

// Name returns the stable compressor name.
func (LZ4) Name() string { return "lz4" }
