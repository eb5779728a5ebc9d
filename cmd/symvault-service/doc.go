// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// symvault-service is the HTTP front-end for the symvault debug
// artifact vault.
//
// It serves three endpoints:
//
//   - GET /artifact-lookup?debug_ids=... resolves debug identifiers to
//     download descriptors for the bundles that contain them.
//   - GET /artifact-lookup?download=<blob_id> streams a bundle's bytes.
//   - POST /artifact-bundle?debug_ids=... ingests a bundle.
//
// Every request (except /healthz) carries a static bearer token from
// the config file; the token binds the request to an organization and
// project and carries the scopes it may exercise. Downloads pass an
// access gate and a per-(blob, project) rate limiter before any blob
// is opened.
package main
