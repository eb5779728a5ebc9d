// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore implements content-addressed blob storage on the
// local filesystem.
//
// Each blob is stored as a single container file named by the BLAKE3-256
// hex digest of its uncompressed content, sharded two directory levels
// deep (blobs/ab/cd/abcd...). A container holds a small CBOR header
// followed by length-prefixed chunks. Chunks are compressed independently
// (zstd by default, lz4 as an alternative, raw when the data does not
// compress) and, when the store is opened with an encryption key, sealed
// with XChaCha20-Poly1305 under a per-blob key derived from the master
// key and the blob digest.
//
// Writes stream through a temp file and are published with an atomic
// rename, so readers never observe a partially written container.
// Identical content hashes to the same path and is stored once. Reads
// stream chunk by chunk, holding at most one chunk in memory, and verify
// the content digest against the blob id before reporting end of stream.
//
// A store opened for writing holds an exclusive flock on the root, so a
// second writer (for example an offline garbage collection run against a
// live service) fails fast instead of racing.
package blobstore
