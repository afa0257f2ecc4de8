package compress

import (
	"testing"

	"github.com/arloliu/wavemem/format"
)

func BenchmarkCompressToggleBlock(b *testing.B) {
	raw := toggleBlock(4096)
	for _, ct := range allCodecTypes() {
		codec, _ := GetCodec(ct)
		b.Run(ct.String(), func(b *testing.B) {
			b.SetBytes(int64(len(raw)))
			for b.Loop() {
				_, _ = codec.Compress(raw)
			}
		})
	}
}

func BenchmarkDecompressToggleBlock(b *testing.B) {
	raw := toggleBlock(4096)
	for _, ct := range []format.CompressionType{format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		codec, _ := GetCodec(ct)
		compressed, _ := codec.Compress(raw)
		b.Run(ct.String(), func(b *testing.B) {
			b.SetBytes(int64(len(raw)))
			for b.Loop() {
				_, _ = Decompress(codec, compressed, len(raw))
			}
		})
	}
}
