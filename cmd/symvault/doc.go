// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// symvault is the operator CLI for the debug artifact vault: upload
// bundles, resolve debug identifiers, fetch blobs, generate encryption
// keys, and garbage-collect the store.
package main
