// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/symvault/lib/secret"
)

// Handle is an open blob. It streams the uncompressed content chunk by
// chunk, holding at most one chunk in memory, and hashes what it hands
// out: the final Read returns ErrCorrupt instead of io.EOF if the
// content does not match the blob id.
//
// A Handle is not safe for concurrent use. Close releases the
// underlying file and, for encrypted blobs, the derived key.
type Handle struct {
	id     Hash
	file   *os.File
	header *containerHeader

	// Sealed containers only.
	aead    cipher.AEAD
	blobKey *secret.Buffer

	hasher     *blake3.Hasher
	chunkIndex int64
	buffer     []byte
	offset     int
	err        error
	closed     bool
}

// ID returns the blob id.
func (h *Handle) ID() string {
	return h.id.String()
}

// Size returns the uncompressed content size in bytes.
func (h *Handle) Size() int64 {
	return h.header.Size
}

// Read implements io.Reader over the uncompressed content.
func (h *Handle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, errors.New("blobstore: read from closed handle")
	}
	if h.err != nil {
		return 0, h.err
	}

	for h.offset == len(h.buffer) {
		if h.chunkIndex == h.header.chunkCount() {
			h.err = h.verifyDigest()
			return 0, h.err
		}
		if err := h.loadChunk(); err != nil {
			h.err = err
			return 0, err
		}
	}

	n := copy(p, h.buffer[h.offset:])
	h.offset += n
	return n, nil
}

// loadChunk reads, unseals, and decompresses the next chunk record into
// the buffer.
func (h *Handle) loadChunk() error {
	var lengthPrefix [4]byte
	if _, err := io.ReadFull(h.file, lengthPrefix[:]); err != nil {
		return fmt.Errorf("blob %s: reading chunk %d length: %v: %w", h.id, h.chunkIndex, err, ErrCorrupt)
	}
	recordLength := int64(binary.LittleEndian.Uint32(lengthPrefix[:]))
	if recordLength == 0 || recordLength > h.header.maxRecordSize() {
		return fmt.Errorf("blob %s: chunk %d record length %d out of range: %w", h.id, h.chunkIndex, recordLength, ErrCorrupt)
	}

	record := make([]byte, recordLength)
	if _, err := io.ReadFull(h.file, record); err != nil {
		return fmt.Errorf("blob %s: reading chunk %d: %v: %w", h.id, h.chunkIndex, err, ErrCorrupt)
	}

	if h.aead != nil {
		opened, err := openChunk(h.aead, h.chunkIndex, record)
		if err != nil {
			return fmt.Errorf("blob %s: chunk %d: %v: %w", h.id, h.chunkIndex, err, ErrCorrupt)
		}
		record = opened
	}

	if len(record) < 1 {
		return fmt.Errorf("blob %s: chunk %d record is empty: %w", h.id, h.chunkIndex, ErrCorrupt)
	}
	tag := CompressionTag(record[0])
	expected := h.header.chunkPlainSize(h.chunkIndex)
	plain, err := DecompressChunk(tag, record[1:], int(expected))
	if err != nil {
		return fmt.Errorf("blob %s: chunk %d: %v: %w", h.id, h.chunkIndex, err, ErrCorrupt)
	}

	h.hasher.Write(plain)
	h.buffer = plain
	h.offset = 0
	h.chunkIndex++
	return nil
}

// verifyDigest runs after the last chunk. Returns io.EOF when the
// streamed content hashes to the blob id, ErrCorrupt otherwise.
func (h *Handle) verifyDigest() error {
	if !bytes.Equal(h.hasher.Sum(nil), h.header.Digest) {
		return fmt.Errorf("blob %s: content does not match digest: %w", h.id, ErrCorrupt)
	}
	return io.EOF
}

// Close releases the container file and the derived blob key.
// Idempotent.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	err := h.file.Close()
	if h.blobKey != nil {
		if keyErr := h.blobKey.Close(); err == nil {
			err = keyErr
		}
	}
	return err
}
