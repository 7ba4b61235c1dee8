package codec

import "github.com/klauspost/compress/s2"

// S2 compresses rows with the s2 block format.
type S2 struct{}

// Compress appends the s2-compressed form of src to dst.
func (S2) Compress(dst, src []byte) ([]byte, error) {
	block := s2.Encode(nil, src)
	return append(dst, block...), nil
}

// Decompress appends the decompressed form of src to dst.
func (S2) Decompress(dst, src []byte) ([]byte, error) {
	out, err := s2.Decode(nil, src)
	if err != nil {
		return dst, err
	}
	return append(dst, out...), nil
}

// Name returns the stable compressor name.
func (S2) Name() string { return "s2" }
