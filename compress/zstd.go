package compress

// ZstdCompressor provides Zstandard block compression.
//
// It trades encode speed for ratio and is the choice for very large traces
// where resident memory matters more than load time.
//
// The pure-Go implementation from klauspost/compress is used by default.
// Building with the gozstd tag and cgo enabled switches to valyala/gozstd.
type ZstdCompressor struct{}

var (
	_ Codec             = (*ZstdCompressor)(nil)
	_ SizedDecompressor = (*ZstdCompressor)(nil)
)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
