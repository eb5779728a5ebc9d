// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression applied to a single chunk.
// The tag is stored as the first byte of each chunk record, so every
// chunk decodes independently of the store configuration that wrote it.
type CompressionTag byte

const (
	// CompressionNone stores the chunk bytes as-is.
	CompressionNone CompressionTag = 0
	// CompressionLZ4 compresses with LZ4 block format. Fast with
	// moderate ratios; suited to stores on slow CPUs.
	CompressionLZ4 CompressionTag = 1
	// CompressionZstd compresses with zstandard at the default level.
	// The store default.
	CompressionZstd CompressionTag = 2
)

// String returns the configuration name of the tag.
func (t CompressionTag) String() string {
	switch t {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// ParseCompressionTag parses a configuration name ("none", "lz4",
// "zstd") into a tag.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, or zstd)", name)
	}
}

// errIncompressible reports that compression would not shrink the chunk.
// Callers fall back to storing the chunk raw under CompressionNone.
var errIncompressible = errors.New("chunk is incompressible")

// Shared zstd coders. EncodeAll and DecodeAll on these are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("blobstore: initializing zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("blobstore: initializing zstd decoder: " + err.Error())
	}
}

// CompressChunk compresses a chunk with the given tag. Returns
// errIncompressible when the compressed form would be no smaller than
// the input; the caller should then store the chunk raw.
func CompressChunk(tag CompressionTag, chunk []byte) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return chunk, nil
	case CompressionLZ4:
		return compressLZ4(chunk)
	case CompressionZstd:
		return compressZstd(chunk)
	default:
		return nil, fmt.Errorf("compressing chunk: unknown tag %d", byte(tag))
	}
}

func compressLZ4(chunk []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(chunk))
	destination := make([]byte, bound)
	var compressor lz4.Compressor
	written, err := compressor.CompressBlock(chunk, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression: %w", err)
	}
	// CompressBlock returns 0 when the data is incompressible.
	if written == 0 || written >= len(chunk) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(chunk []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(chunk, make([]byte, 0, len(chunk)))
	if len(compressed) >= len(chunk) {
		return nil, errIncompressible
	}
	return compressed, nil
}

// compressWithFallback compresses a chunk with the preferred tag,
// storing the chunk raw when it does not shrink. Returns the tag that
// was actually applied.
func compressWithFallback(tag CompressionTag, chunk []byte) (CompressionTag, []byte, error) {
	if tag == CompressionNone || len(chunk) == 0 {
		return CompressionNone, chunk, nil
	}
	compressed, err := CompressChunk(tag, chunk)
	if errors.Is(err, errIncompressible) {
		return CompressionNone, chunk, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return tag, compressed, nil
}

// DecompressChunk reverses CompressChunk. The expected uncompressed
// size is known from the container header, and a chunk that decodes to
// any other size is corrupt.
func DecompressChunk(tag CompressionTag, compressed []byte, expectedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != expectedSize {
			return nil, fmt.Errorf("raw chunk is %d bytes, expected %d", len(compressed), expectedSize)
		}
		return compressed, nil

	case CompressionLZ4:
		decompressed := make([]byte, expectedSize)
		written, err := lz4.UncompressBlock(compressed, decompressed)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression: %w", err)
		}
		if written != expectedSize {
			return nil, fmt.Errorf("lz4 chunk decompressed to %d bytes, expected %d", written, expectedSize)
		}
		return decompressed, nil

	case CompressionZstd:
		decompressed, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, expectedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompression: %w", err)
		}
		if len(decompressed) != expectedSize {
			return nil, fmt.Errorf("zstd chunk decompressed to %d bytes, expected %d", len(decompressed), expectedSize)
		}
		return decompressed, nil

	default:
		return nil, fmt.Errorf("decompressing chunk: unknown tag %d", byte(tag))
	}
}

// Sample size and ratio thresholds for SelectCompression. The probe
// compresses up to probeSize bytes with zstd and reads the achieved
// ratio: highly compressible data gets zstd, mildly compressible data
// gets lz4 (cheaper per byte), anything else is stored raw.
const (
	probeSize      = 64 * 1024
	zstdRatioFloor = 1.5
	lz4RatioFloor  = 1.1
)

// SelectCompression picks a compression tag for a blob by probing its
// first bytes.
func SelectCompression(sample []byte) CompressionTag {
	if len(sample) == 0 {
		return CompressionNone
	}
	if len(sample) > probeSize {
		sample = sample[:probeSize]
	}
	compressed := zstdEncoder.EncodeAll(sample, make([]byte, 0, len(sample)))
	ratio := float64(len(sample)) / float64(len(compressed))
	switch {
	case ratio >= zstdRatioFloor:
		return CompressionZstd
	case ratio >= lz4RatioFloor:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
