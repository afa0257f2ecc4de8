// Package compress provides the block codecs used by the signal encoder.
//
// Every signal block is first encoded (varint time-index deltas plus packed
// values) and then passed through one of these general-purpose codecs:
//   - None: no compression, payload stored verbatim
//   - S2: default, fast encode with good ratio
//   - Zstd: best ratio, slower encode
//   - LZ4: fastest decompression
//
// All codecs are stateless values and safe for concurrent use; pooled
// encoder state is kept in package-level sync.Pools.
//
// Block metadata records the raw length, so codecs that can use it implement
// SizedDecompressor and Decompress picks that path automatically:
//
//	codec, _ := compress.GetCodec(format.CompressionS2)
//	payload, _ := codec.Compress(raw)
//	restored, _ := compress.Decompress(codec, payload, len(raw))
package compress
