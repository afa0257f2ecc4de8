package compress

// NoOpCompressor stores blocks uncompressed.
//
// Useful for debugging block layouts and as a baseline when measuring the
// effect of the real codecs.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new no-operation compressor.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Compress returns a copy of data.
//
// The encoder reuses its raw block buffer, so the payload must not alias it.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}

// Decompress returns data as-is without copying.
//
// The returned slice shares memory with the stored payload; callers must
// treat it as read-only.
func (c NoOpCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
