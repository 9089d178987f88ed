// Package compress provides optional compression codecs for the
// string key_bytes block of a String-typed attribute index (SPEC_FULL
// §5.1).
//
// # Overview
//
// With compression enabled, a String-typed index's variable-length UTF-8
// keys are concatenated into one contiguous key_bytes block, stored apart
// from the per-entry framing (key_len/offset_count/offsets). Compressing
// that block trades the streaming reader's binary search for a full-scan
// fallback (the compressed block has no stable byte offsets to seek
// into), so it is opt-in via the index.WithStringCompression builder
// option and never applied to fixed-width indexes.
//
// Supported algorithms:
//   - None: no compression (keeps binary search available)
//   - Zstd: best ratio, used for cold/archival string indexes
//   - S2: balanced ratio and speed
//   - LZ4: fastest decompression, for read-heavy workloads willing to
//     pay the full-scan cost anyway
//
// # Architecture
//
//	type Compressor interface {
//	    Compress(data []byte) ([]byte, error)
//	}
//
//	type Decompressor interface {
//	    Decompress(data []byte) ([]byte, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	}
//
// # Selection
//
// Use CreateCodec or GetCodec with a format.CompressionType:
//
//	codec, err := compress.GetCodec(format.CompressionZstd)
//	compressed, err := codec.Compress(keyBytesBlock)
//	...
//	original, err := codec.Decompress(compressed)
//
// # Thread Safety
//
// All codec implementations are safe for concurrent use.
package compress
