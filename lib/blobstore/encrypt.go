// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/symvault/lib/secret"
)

// KeySize is the size in bytes of the store master key and of the
// per-blob keys derived from it.
const KeySize = 32

// sealedChunkOverhead is the byte overhead per sealed chunk record:
// 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const sealedChunkOverhead = chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// HKDF info prefix for per-blob key derivation. The blob digest is
// appended, so every blob encrypts under its own key and a ciphertext
// chunk copied between container files fails authentication. Changing
// this string invalidates all existing ciphertext.
var hkdfInfoBlobKey = []byte("symvault.blob.enc.v1")

// deriveBlobKey derives the encryption key for one blob from the store
// master key and the blob's content digest, via HKDF-SHA256 with nil
// salt (the master key is uniformly random, so the extract phase with a
// zero HMAC key is appropriate per RFC 5869).
//
// The masterKey is borrowed (read via Bytes) and is NOT closed. The
// returned buffer must be closed by the caller.
func deriveBlobKey(masterKey *secret.Buffer, digest Hash) (*secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoBlobKey)+len(digest))
	copy(info, hkdfInfoBlobKey)
	copy(info[len(hkdfInfoBlobKey):], digest[:])

	reader := hkdf.New(sha256.New, masterKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into mmap and zeros the heap slice.
	return secret.NewFromBytes(derived)
}

// blobAEAD builds the XChaCha20-Poly1305 cipher for a blob key.
func blobAEAD(blobKey *secret.Buffer) (cipher.AEAD, error) {
	aead, err := chacha20poly1305.NewX(blobKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return aead, nil
}

// chunkAAD constructs the additional authenticated data for one chunk:
// the container version byte followed by the chunk index. Binding the
// index prevents reordering or duplicating sealed chunks within a
// container.
func chunkAAD(chunkIndex int64) []byte {
	aad := make([]byte, 1+8)
	aad[0] = containerVersion
	binary.LittleEndian.PutUint64(aad[1:], uint64(chunkIndex))
	return aad
}

// sealChunk encrypts one chunk record and returns
//
//	[Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
func sealChunk(aead cipher.AEAD, chunkIndex int64, record []byte) ([]byte, error) {
	output := make([]byte, chacha20poly1305.NonceSizeX, len(record)+sealedChunkOverhead)
	if _, err := io.ReadFull(rand.Reader, output); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}
	return aead.Seal(output, output[:chacha20poly1305.NonceSizeX], record, chunkAAD(chunkIndex)), nil
}

// openChunk decrypts a sealed chunk record produced by sealChunk.
// Authentication fails if the record was tampered with, sealed under a
// different blob's key, or moved to a different chunk index.
func openChunk(aead cipher.AEAD, chunkIndex int64, sealed []byte) ([]byte, error) {
	if len(sealed) < sealedChunkOverhead {
		return nil, fmt.Errorf("sealed chunk is %d bytes, minimum is %d", len(sealed), sealedChunkOverhead)
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ciphertext := sealed[chacha20poly1305.NonceSizeX:]
	record, err := aead.Open(nil, nonce, ciphertext, chunkAAD(chunkIndex))
	if err != nil {
		return nil, fmt.Errorf("chunk authentication failed: %w", err)
	}
	return record, nil
}
