// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package debugid parses and normalizes debug identifiers: the
// canonical tokens that identify a specific build's debug information.
//
// A debug identifier is a 16-byte UUID with an optional 32-bit
// appendix (the "age" emitted by PE/PDB toolchains). Input is accepted
// in any of the forms produced by common tooling:
//
//   - dashed UUID: dfb8e43a-f242-3d73-a453-aeb6a777ef75
//   - bare hex: dfb8e43af2423d73a453aeb6a777ef75
//   - either form with an appendix, dashed or concatenated:
//     dfb8e43a-f242-3d73-a453-aeb6a777ef75-a1b2c3d4
//     dfb8e43af2423d73a453aeb6a777ef75a (breakpad)
//
// The canonical rendering is the lowercase dashed UUID, with the
// appendix appended as "-<hex>" (no leading zeros) when nonzero.
package debugid

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ID is a normalized debug identifier. The zero value is not a valid
// identifier; construct IDs with Normalize.
type ID struct {
	uuid     [16]byte
	appendix uint32
}

// Normalize parses a raw debug identifier string into canonical form.
// Case is folded, dashes are ignored, and a trailing appendix of up
// to eight hex digits beyond the 32 UUID digits is accepted. Returns
// an error for anything else; callers performing lookups drop
// malformed identifiers silently rather than failing the request.
func Normalize(raw string) (ID, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	if len(cleaned) < 32 {
		return ID{}, fmt.Errorf("debug id %q: too short (%d hex digits, need 32)", raw, len(cleaned))
	}
	if len(cleaned) > 40 {
		return ID{}, fmt.Errorf("debug id %q: too long (%d hex digits, max 40)", raw, len(cleaned))
	}

	var id ID
	if _, err := hex.Decode(id.uuid[:], []byte(cleaned[:32])); err != nil {
		return ID{}, fmt.Errorf("debug id %q: invalid hex: %w", raw, err)
	}

	if rest := cleaned[32:]; rest != "" {
		appendix, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return ID{}, fmt.Errorf("debug id %q: invalid appendix %q: %w", raw, rest, err)
		}
		id.appendix = uint32(appendix)
	}

	return id, nil
}

// String renders the canonical form: lowercase dashed UUID, with a
// "-<hex>" appendix suffix when the appendix is nonzero.
func (id ID) String() string {
	h := hex.EncodeToString(id.uuid[:])
	canonical := h[:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:]
	if id.appendix != 0 {
		canonical += "-" + strconv.FormatUint(uint64(id.appendix), 16)
	}
	return canonical
}

// Appendix returns the 32-bit appendix, zero when absent.
func (id ID) Appendix() uint32 { return id.appendix }

// NormalizeAll normalizes a sequence of raw identifiers, silently
// dropping malformed entries and collapsing duplicates. The returned
// slice preserves first-seen order of the valid identifiers.
func NormalizeAll(raw []string) []ID {
	seen := make(map[ID]struct{}, len(raw))
	ids := make([]ID, 0, len(raw))
	for _, entry := range raw {
		id, err := Normalize(entry)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
