package compress

import (
	"fmt"

	"github.com/arloliu/wavemem/format"
)

// Compressor compresses one raw signal block.
//
// Raw blocks hold varint time-index deltas interleaved with packed values and
// are bounded by the encoder's block limits (64KiB by default).
//
// Memory management:
//   - Returned slice is owned by the caller unless the implementation documents otherwise
//   - Input slice is not modified
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a raw block from its compressed payload.
//
// Implementations must be safe for concurrent use: the query engine calls
// Decompress from many goroutines at once.
type Decompressor interface {
	// Decompress returns the original bytes or an error if data is corrupted
	// or was produced by a different algorithm.
	Decompress(data []byte) ([]byte, error)
}

// SizedDecompressor is implemented by codecs that decompress faster when the
// raw length is known up front. Block metadata always records it.
type SizedDecompressor interface {
	DecompressSized(data []byte, rawLen int) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// CompressionStats summarizes the compressed footprint of encoded blocks.
type CompressionStats struct {
	// Algorithm identifies the compression algorithm used
	Algorithm format.CompressionType

	// OriginalSize is the total raw block size in bytes
	OriginalSize int64

	// CompressedSize is the total compressed block size in bytes
	CompressedSize int64

	// Blocks is the number of blocks counted
	Blocks int64
}

// Add accumulates one block.
func (s *CompressionStats) Add(rawLen, compressedLen int) {
	s.OriginalSize += int64(rawLen)
	s.CompressedSize += int64(compressedLen)
	s.Blocks++
}

// Merge accumulates other into s.
func (s *CompressionStats) Merge(other CompressionStats) {
	s.OriginalSize += other.OriginalSize
	s.CompressedSize += other.CompressedSize
	s.Blocks += other.Blocks
}

// CompressionRatio returns compressed size / original size.
//
// Values less than 1.0 indicate successful compression. Returns 0.0 when
// nothing was counted.
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space savings as a percentage (0-100%).
func (s CompressionStats) SpaceSavings() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return (1.0 - s.CompressionRatio()) * 100.0
}

var builtinCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec retrieves a built-in Codec for the specified compression type.
func GetCodec(compressionType format.CompressionType) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %s", compressionType)
}

// Decompress restores data with codec, using the sized path when the codec supports it.
func Decompress(codec Decompressor, data []byte, rawLen int) ([]byte, error) {
	if sized, ok := codec.(SizedDecompressor); ok {
		return sized.DecompressSized(data, rawLen)
	}

	return codec.Decompress(data)
}
