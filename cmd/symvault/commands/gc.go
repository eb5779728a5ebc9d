// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/symvault/cmd/symvault/cli"
	"github.com/bureau-foundation/symvault/lib/blobstore"
	"github.com/bureau-foundation/symvault/lib/bundleindex"
	"github.com/bureau-foundation/symvault/lib/clock"
	"github.com/bureau-foundation/symvault/lib/config"
	"github.com/bureau-foundation/symvault/lib/secret"
)

func gcCommand() *cli.Command {
	var (
		configPath string
		verify     bool
		dryRun     bool
	)
	return &cli.Command{
		Name:    "gc",
		Summary: "delete blobs no bundle references",
		Description: `Delete blobs no bundle references.

Opens the store and index directly (the service must not be running:
gc takes the store's writer lock). A blob referenced by any
organization's bundles is live; everything else is deleted. With
--verify, surviving blobs are also digest-checked, and gc exits
non-zero if any are corrupt.`,
		Usage: "symvault gc [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("gc", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to symvault.yaml (default: $SYMVAULT_CONFIG)")
			flags.BoolVar(&verify, "verify", false, "digest-check surviving blobs")
			flags.BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
			return flags
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runGC(context.Background(), cfg, verify, dryRun)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runGC(ctx context.Context, cfg *config.Config, verify, dryRun bool) error {
	var key *secret.Buffer
	if cfg.Store.EncryptionKeyFile != "" {
		var err error
		key, err = secret.ReadKeyFromPath(cfg.Store.EncryptionKeyFile, blobstore.KeySize)
		if err != nil {
			return fmt.Errorf("reading encryption key: %w", err)
		}
	}

	store, err := blobstore.NewStore(blobstore.Options{
		Root:     cfg.Store.Root,
		ReadOnly: dryRun,
		Key:      key,
	})
	if err != nil {
		if key != nil {
			key.Close()
		}
		return fmt.Errorf("opening blob store: %w", err)
	}
	defer store.Close()

	index, err := bundleindex.Open(bundleindex.Config{
		Path:     cfg.Index.Path,
		PoolSize: 1,
		Clock:    clock.Real(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return fmt.Errorf("opening bundle index: %w", err)
	}
	defer index.Close()

	live, err := index.ReferencedBlobs(ctx)
	if err != nil {
		return err
	}

	var kept, deleted, corrupt int
	err = store.Walk(func(blobID string) error {
		if _, referenced := live[blobID]; !referenced {
			if dryRun {
				fmt.Printf("would delete %s\n", blobID)
			} else if err := store.Delete(blobID); err != nil {
				return fmt.Errorf("deleting %s: %w", blobID, err)
			}
			deleted++
			return nil
		}

		kept++
		if verify {
			if err := store.Verify(blobID); err != nil {
				fmt.Fprintf(os.Stderr, "corrupt: %s: %v\n", blobID, err)
				corrupt++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("gc: %d blobs kept, %d deleted", kept, deleted)
	if verify {
		fmt.Printf(", %d corrupt", corrupt)
	}
	fmt.Println()

	if corrupt > 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}
