// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree framework for the symvault
// CLI: nested command dispatch with pflag flag sets, structured help
// output, typo suggestions, and JSON output helpers.
package cli
