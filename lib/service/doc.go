// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared infrastructure for symvault
// binaries: the standard structured logger and an HTTP server wrapper
// with graceful shutdown.
//
// Binaries compose these utilities in their own main() function rather
// than subclassing a framework. The package provides building blocks,
// not a runtime.
package service
