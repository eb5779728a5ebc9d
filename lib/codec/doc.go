// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for symvault's
// persisted records, most notably blob container headers.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// logical value always produces identical bytes, so encoded records
// can be compared and hashed. Decoding ignores unknown fields, which
// lets newer writers add header fields without breaking older
// readers.
package codec
