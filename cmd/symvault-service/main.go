// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/symvault/lib/blobstore"
	"github.com/bureau-foundation/symvault/lib/bundleindex"
	"github.com/bureau-foundation/symvault/lib/clock"
	"github.com/bureau-foundation/symvault/lib/config"
	"github.com/bureau-foundation/symvault/lib/lookup"
	"github.com/bureau-foundation/symvault/lib/ratelimit"
	"github.com/bureau-foundation/symvault/lib/secret"
	"github.com/bureau-foundation/symvault/lib/service"
	"github.com/bureau-foundation/symvault/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "path to symvault.yaml (default: $SYMVAULT_CONFIG)")
	flag.Parse()

	if showVersion {
		fmt.Printf("symvault-service %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := service.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the at-rest encryption key before anything opens the
	// store. The key is held in guarded memory (mmap-backed,
	// mlock'd, zeroed on close); the store takes ownership.
	var key *secret.Buffer
	if cfg.Store.EncryptionKeyFile != "" {
		key, err = secret.ReadKeyFromPath(cfg.Store.EncryptionKeyFile, blobstore.KeySize)
		if err != nil {
			return fmt.Errorf("reading encryption key: %w", err)
		}
		logger.Info("store encryption key loaded", "path", cfg.Store.EncryptionKeyFile)
	}

	store, err := blobstore.NewStore(blobstore.Options{
		Root:            cfg.Store.Root,
		ChunkSize:       cfg.Store.ChunkSize,
		Compression:     compressionTag(cfg.Store.Compression),
		AutoCompression: cfg.Store.Compression == "auto",
		Key:             key,
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
		PoolSize: cfg.Index.PoolSize,
		Clock:    clock.Real(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("opening bundle index: %w", err)
	}
	defer index.Close()

	tokens, err := newTokenTable(cfg.Auth.Tokens)
	if err != nil {
		return err
	}
	defer tokens.Close()

	h := newHandler(handler{
		store:         store,
		index:         index,
		resolver:      lookup.NewResolver(index, logger),
		limiter:       ratelimit.New(cfg.WindowDuration(), clock.Real()),
		tokens:        tokens,
		gate:          scopeGate{},
		logger:        logger,
		advertiseURL:  cfg.Service.AdvertiseURL,
		downloadLimit: cfg.RateLimit.DownloadLimit,
	})

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Service.Listen,
		Handler:         h.routes(),
		ShutdownTimeout: cfg.ShutdownTimeoutDuration(),
		Logger:          logger,
	})

	logger.Info("symvault-service starting",
		"version", version.Short(),
		"listen", cfg.Service.Listen,
		"store", cfg.Store.Root,
		"index", cfg.Index.Path,
		"encrypted", store.Encrypted(),
	)

	return server.Serve(ctx)
}

// compressionTag maps the config value to a store tag. Validate has
// already rejected unknown values; "auto" is handled by the
// AutoCompression option and falls through to the zstd default here.
func compressionTag(name string) blobstore.CompressionTag {
	switch name {
	case "lz4":
		return blobstore.CompressionLZ4
	case "none":
		return blobstore.CompressionNone
	default:
		return blobstore.CompressionZstd
	}
}
