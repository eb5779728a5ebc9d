// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifacts.jsonc")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestLoadManifestAcceptsJSONC(t *testing.T) {
	path := writeManifest(t, `{
	// built by release pipeline 42
	"bundles": [
		{
			"path": "app.zip",
			"debug_ids": ["dfb8e43a-f242-3d73-a453-aeb6a777ef75"],
		},
		{
			"path": "lib/native.zip",
			"debug_ids": [
				"aaaaaaaa-0000-0000-0000-000000000001",
				"aaaaaaaa-0000-0000-0000-000000000002",
			],
		},
	],
}`)

	m, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if len(m.Bundles) != 2 {
		t.Fatalf("bundles = %d, want 2", len(m.Bundles))
	}
	if m.Bundles[0].Path != "app.zip" {
		t.Errorf("bundles[0].path = %q", m.Bundles[0].Path)
	}
	if len(m.Bundles[1].DebugIDs) != 2 {
		t.Errorf("bundles[1] debug ids = %d, want 2", len(m.Bundles[1].DebugIDs))
	}
}

func TestLoadManifestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no_bundles",
			content: `{"bundles": []}`,
			wantErr: "lists no bundles",
		},
		{
			name:    "missing_path",
			content: `{"bundles": [{"debug_ids": ["dfb8e43a-f242-3d73-a453-aeb6a777ef75"]}]}`,
			wantErr: "has no path",
		},
		{
			name:    "no_valid_debug_ids",
			content: `{"bundles": [{"path": "app.zip", "debug_ids": ["nonsense"]}]}`,
			wantErr: "no valid debug ids",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadManifest(writeManifest(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
