// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the symvault CLI command tree.
package commands

import (
	"fmt"

	"github.com/bureau-foundation/symvault/cmd/symvault/cli"
	"github.com/bureau-foundation/symvault/lib/version"
)

// Root builds and returns the complete symvault CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "symvault",
		Description: `symvault: debug artifact bundle vault.

Ingest debug artifact bundles, resolve debug identifiers to download
links, fetch bundle content, and maintain the backing blob store.`,
		Subcommands: []*cli.Command{
			ingestCommand(),
			lookupCommand(),
			fetchCommand(),
			gcCommand(),
			keygenCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Printf("symvault %s\n", version.Full())
			return nil
		},
	}
}
