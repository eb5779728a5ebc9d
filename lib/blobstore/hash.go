// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the size in bytes of a blob content digest.
const HashSize = 32

// Hash is a BLAKE3-256 digest of a blob's uncompressed content. Its hex
// encoding is the blob id used in the index, in URLs, and as the
// container file name.
type Hash [HashSize]byte

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex blob id. Uppercase hex is
// accepted; the canonical form produced by String is lowercase.
func ParseHash(id string) (Hash, error) {
	var h Hash
	if len(id) != hex.EncodedLen(HashSize) {
		return h, fmt.Errorf("blob id must be %d hex characters, got %d", hex.EncodedLen(HashSize), len(id))
	}
	if _, err := hex.Decode(h[:], []byte(id)); err != nil {
		return h, fmt.Errorf("blob id %q is not valid hex", id)
	}
	return h, nil
}
