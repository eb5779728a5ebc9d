// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bundleindex maintains the SQLite mapping from debug ids to
// uploaded artifact bundles and their backing blobs.
//
// Two tables back the index. artifact_bundles holds one row per
// uploaded bundle: its id, owning organization, backing blob id, and
// uncompressed size. debug_id_bundles holds one row per (debug id,
// bundle) pair extracted from the bundle manifest at ingest. Every
// query is scoped to an organization; rows from one organization are
// never visible to another.
//
// Resolve answers the lookup question: given an organization and a set
// of normalized debug ids, which bundles can serve them? Bundles whose
// containers dedup to the same backing blob are collapsed to a single
// reference (the lexically smallest bundle id wins), so a client never
// downloads identical bytes twice.
//
// The index is derived data. The blob store plus the uploaded manifests
// are the source of truth, and the database can be rebuilt by
// re-ingesting bundles.
package bundleindex
