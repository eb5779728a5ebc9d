// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bureau-foundation/symvault/lib/codec"
)

// containerVersion is the container format version. It is byte 7 of the
// magic and part of the AAD of every sealed chunk.
const containerVersion byte = 0x01

// containerMagic identifies a blob container file:
// "SYMVLT" + version + zero.
var containerMagic = [8]byte{'S', 'Y', 'M', 'V', 'L', 'T', containerVersion, 0}

// Container layout:
//
//	[Magic: 8 bytes] [Header length: uint32 LE] [Header: CBOR]
//	then per chunk: [Record length: uint32 LE] [Record]
//
// A plaintext record is a compression tag byte followed by the chunk
// payload. In an encrypted container the record is instead the sealed
// form of that: nonce + ciphertext + tag (see sealChunk).
const (
	// maxHeaderSize bounds the CBOR header so a corrupt length field
	// cannot trigger a huge allocation.
	maxHeaderSize = 4096
	// MaxChunkSize bounds the configured chunk size and the chunk size
	// accepted from container headers.
	MaxChunkSize = 64 << 20
)

// containerHeader is the CBOR-encoded metadata at the front of every
// container file.
type containerHeader struct {
	// Digest is the BLAKE3-256 digest of the uncompressed content.
	// Matches the container's file name.
	Digest []byte `cbor:"digest"`
	// Size is the uncompressed content size in bytes.
	Size int64 `cbor:"size"`
	// ChunkSize is the uncompressed size of every chunk except the
	// last, which holds the remainder.
	ChunkSize int64 `cbor:"chunk_size"`
	// Encrypted reports whether chunk records are sealed.
	Encrypted bool `cbor:"encrypted"`
	// CreatedAt is the Unix timestamp of the write.
	CreatedAt int64 `cbor:"created_at"`
}

// chunkCount returns the number of chunk records in the container.
func (h *containerHeader) chunkCount() int64 {
	if h.Size == 0 {
		return 0
	}
	return (h.Size + h.ChunkSize - 1) / h.ChunkSize
}

// chunkPlainSize returns the uncompressed size of the chunk at the
// given index.
func (h *containerHeader) chunkPlainSize(index int64) int64 {
	remaining := h.Size - index*h.ChunkSize
	if remaining > h.ChunkSize {
		return h.ChunkSize
	}
	return remaining
}

// maxRecordSize returns the largest valid chunk record for this
// container: a full raw chunk plus the tag byte, plus seal overhead
// when encrypted. Anything larger in a length prefix is corruption.
func (h *containerHeader) maxRecordSize() int64 {
	size := h.ChunkSize + 1
	if h.Encrypted {
		size += sealedChunkOverhead
	}
	return size
}

func (h *containerHeader) validate() error {
	if len(h.Digest) != HashSize {
		return fmt.Errorf("header digest is %d bytes, want %d", len(h.Digest), HashSize)
	}
	if h.Size < 0 {
		return fmt.Errorf("header size %d is negative", h.Size)
	}
	if h.ChunkSize < 1 || h.ChunkSize > MaxChunkSize {
		return fmt.Errorf("header chunk size %d out of range [1, %d]", h.ChunkSize, MaxChunkSize)
	}
	return nil
}

// writeContainerHeader writes the magic, the header length prefix, and
// the CBOR header.
func writeContainerHeader(w io.Writer, header *containerHeader) error {
	encoded, err := codec.Marshal(header)
	if err != nil {
		return fmt.Errorf("encoding container header: %w", err)
	}
	if len(encoded) > maxHeaderSize {
		return fmt.Errorf("container header is %d bytes, limit %d", len(encoded), maxHeaderSize)
	}
	if _, err := w.Write(containerMagic[:]); err != nil {
		return fmt.Errorf("writing container magic: %w", err)
	}
	var lengthPrefix [4]byte
	binary.LittleEndian.PutUint32(lengthPrefix[:], uint32(len(encoded)))
	if _, err := w.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("writing header length: %w", err)
	}
	if _, err := w.Write(encoded); err != nil {
		return fmt.Errorf("writing container header: %w", err)
	}
	return nil
}

// writeChunkRecord writes one length-prefixed plaintext chunk record:
// the compression tag byte followed by the (possibly compressed)
// payload.
func writeChunkRecord(w io.Writer, tag CompressionTag, payload []byte) error {
	var lengthPrefix [4]byte
	binary.LittleEndian.PutUint32(lengthPrefix[:], uint32(1+len(payload)))
	if _, err := w.Write(lengthPrefix[:]); err != nil {
		return fmt.Errorf("writing chunk length: %w", err)
	}
	if _, err := w.Write([]byte{byte(tag)}); err != nil {
		return fmt.Errorf("writing chunk tag: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing chunk payload: %w", err)
	}
	return nil
}

// readContainerHeader reads and validates the magic and header. All
// failures wrap ErrCorrupt: a container that cannot be parsed is
// indistinguishable from a damaged one.
func readContainerHeader(r io.Reader) (*containerHeader, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("reading container magic: %v: %w", err, ErrCorrupt)
	}
	if !bytes.Equal(magic[:6], containerMagic[:6]) || magic[7] != 0 {
		return nil, fmt.Errorf("bad container magic %q: %w", magic[:], ErrCorrupt)
	}
	if magic[6] != containerVersion {
		return nil, fmt.Errorf("unsupported container version %d: %w", magic[6], ErrCorrupt)
	}

	var lengthPrefix [4]byte
	if _, err := io.ReadFull(r, lengthPrefix[:]); err != nil {
		return nil, fmt.Errorf("reading header length: %v: %w", err, ErrCorrupt)
	}
	headerLength := binary.LittleEndian.Uint32(lengthPrefix[:])
	if headerLength == 0 || headerLength > maxHeaderSize {
		return nil, fmt.Errorf("header length %d out of range: %w", headerLength, ErrCorrupt)
	}

	encoded := make([]byte, headerLength)
	if _, err := io.ReadFull(r, encoded); err != nil {
		return nil, fmt.Errorf("reading container header: %v: %w", err, ErrCorrupt)
	}
	var header containerHeader
	if err := codec.Unmarshal(encoded, &header); err != nil {
		return nil, fmt.Errorf("decoding container header: %v: %w", err, ErrCorrupt)
	}
	if err := header.validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrCorrupt)
	}
	return &header, nil
}
