// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompressionTag_String(t *testing.T) {
	tests := []struct {
		tag  CompressionTag
		want string
	}{
		{CompressionNone, "none"},
		{CompressionLZ4, "lz4"},
		{CompressionZstd, "zstd"},
		{CompressionTag(9), "unknown(9)"},
	}
	for _, test := range tests {
		if got := test.tag.String(); got != test.want {
			t.Errorf("tag %d String() = %q, want %q", byte(test.tag), got, test.want)
		}
	}
}

func TestParseCompressionTag(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		tag, err := ParseCompressionTag(name)
		if err != nil {
			t.Errorf("ParseCompressionTag(%q) failed: %v", name, err)
		}
		if tag.String() != name {
			t.Errorf("ParseCompressionTag(%q) = %s", name, tag)
		}
	}
	if _, err := ParseCompressionTag("gzip"); err == nil {
		t.Error("ParseCompressionTag(gzip) succeeded")
	}
}

func TestCompressChunk_RoundTrip(t *testing.T) {
	content := patternBytes(8192)
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := CompressChunk(tag, content)
			if err != nil {
				t.Fatalf("CompressChunk failed: %v", err)
			}
			if tag != CompressionNone && len(compressed) >= len(content) {
				t.Errorf("compressed size %d not smaller than input %d", len(compressed), len(content))
			}
			decompressed, err := DecompressChunk(tag, compressed, len(content))
			if err != nil {
				t.Fatalf("DecompressChunk failed: %v", err)
			}
			if !bytes.Equal(decompressed, content) {
				t.Error("chunk did not round-trip")
			}
		})
	}
}

func TestCompressChunk_Incompressible(t *testing.T) {
	random := randomBytes(t, 8192)
	for _, tag := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		if _, err := CompressChunk(tag, random); !errors.Is(err, errIncompressible) {
			t.Errorf("CompressChunk(%s, random) = %v, want errIncompressible", tag, err)
		}
	}
}

func TestCompressWithFallback(t *testing.T) {
	pattern := patternBytes(8192)
	tag, compressed, err := compressWithFallback(CompressionZstd, pattern)
	if err != nil {
		t.Fatalf("compressWithFallback failed: %v", err)
	}
	if tag != CompressionZstd {
		t.Errorf("compressible chunk fell back to %s", tag)
	}
	if len(compressed) >= len(pattern) {
		t.Errorf("compressed size %d not smaller than input", len(compressed))
	}

	random := randomBytes(t, 8192)
	tag, raw, err := compressWithFallback(CompressionZstd, random)
	if err != nil {
		t.Fatalf("compressWithFallback failed: %v", err)
	}
	if tag != CompressionNone {
		t.Errorf("incompressible chunk stored as %s, want none", tag)
	}
	if !bytes.Equal(raw, random) {
		t.Error("fallback altered the chunk bytes")
	}
}

func TestDecompressChunk_SizeMismatch(t *testing.T) {
	content := patternBytes(4096)
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		compressed, err := CompressChunk(tag, content)
		if err != nil {
			t.Fatalf("CompressChunk(%s) failed: %v", tag, err)
		}
		if _, err := DecompressChunk(tag, compressed, len(content)+1); err == nil {
			t.Errorf("DecompressChunk(%s) with wrong expected size succeeded", tag)
		}
	}
}

func TestDecompressChunk_UnknownTag(t *testing.T) {
	if _, err := DecompressChunk(CompressionTag(7), []byte{1, 2, 3}, 3); err == nil {
		t.Error("DecompressChunk with unknown tag succeeded")
	}
}

func TestSelectCompression(t *testing.T) {
	if got := SelectCompression(bytes.Repeat([]byte{0}, 16384)); got != CompressionZstd {
		t.Errorf("SelectCompression(zeros) = %s, want zstd", got)
	}
	if got := SelectCompression(randomBytes(t, 16384)); got != CompressionNone {
		t.Errorf("SelectCompression(random) = %s, want none", got)
	}
	if got := SelectCompression(nil); got != CompressionNone {
		t.Errorf("SelectCompression(nil) = %s, want none", got)
	}
}
