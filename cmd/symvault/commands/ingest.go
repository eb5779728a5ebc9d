// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/symvault/cmd/symvault/cli"
	"github.com/bureau-foundation/symvault/lib/debugid"
)

// manifest describes a set of bundles to ingest. The file is JSONC:
// JSON with comments and trailing commas, so manifests can be
// annotated by the build scripts that generate them.
type manifest struct {
	Bundles []manifestBundle `json:"bundles"`
}

type manifestBundle struct {
	// Path to the bundle file, relative to the manifest.
	Path string `json:"path"`
	// DebugIDs contained in the bundle.
	DebugIDs []string `json:"debug_ids"`
}

func ingestCommand() *cli.Command {
	var (
		service serviceFlags
		jsonOut bool
	)
	return &cli.Command{
		Name:    "ingest",
		Summary: "upload bundles listed in a manifest",
		Usage:   "symvault ingest <manifest.jsonc> [flags]",
		Examples: []cli.Example{
			{
				Description: "upload every bundle in a build's manifest",
				Command:     "symvault ingest build/artifacts.jsonc --url https://vault.example.com",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
			service.register(flags)
			flags.BoolVar(&jsonOut, "json", false, "output results as JSON")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one manifest path, got %d arguments", len(args))
			}
			c, err := service.client()
			if err != nil {
				return err
			}
			return runIngest(context.Background(), c, args[0], jsonOut)
		},
	}
}

// ingestResult is one manifest entry's outcome.
type ingestResult struct {
	Path     string `json:"path"`
	BundleID string `json:"bundle_id"`
	BlobID   string `json:"blob_id"`
	Size     int64  `json:"size"`
}

func runIngest(ctx context.Context, c *client, manifestPath string, jsonOut bool) error {
	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	baseDir := filepath.Dir(manifestPath)
	results := make([]ingestResult, 0, len(m.Bundles))
	for _, bundle := range m.Bundles {
		path := bundle.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening bundle %s: %w", bundle.Path, err)
		}
		result, err := c.upload(ctx, bundle.DebugIDs, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("uploading %s: %w", bundle.Path, err)
		}

		results = append(results, ingestResult{
			Path:     bundle.Path,
			BundleID: result.BundleID,
			BlobID:   result.BlobID,
			Size:     result.Size,
		})
		if !jsonOut {
			fmt.Printf("%s: bundle %s (blob %s, %d bytes)\n",
				bundle.Path, result.BundleID, result.BlobID, result.Size)
		}
	}

	if jsonOut {
		return cli.WriteJSON(results)
	}
	return nil
}

// loadManifest parses and validates a JSONC manifest.
func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(m.Bundles) == 0 {
		return nil, fmt.Errorf("manifest %s lists no bundles", path)
	}
	for i, bundle := range m.Bundles {
		if bundle.Path == "" {
			return nil, fmt.Errorf("manifest %s: bundles[%d] has no path", path, i)
		}
		if len(debugid.NormalizeAll(bundle.DebugIDs)) == 0 {
			return nil, fmt.Errorf("manifest %s: bundles[%d] (%s) has no valid debug ids",
				path, i, bundle.Path)
		}
	}
	return &m, nil
}
