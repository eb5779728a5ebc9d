// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symvault.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Service.Listen != "127.0.0.1:3142" {
		t.Errorf("listen = %q, want 127.0.0.1:3142", cfg.Service.Listen)
	}
	if cfg.Store.Compression != "zstd" {
		t.Errorf("compression = %q, want zstd", cfg.Store.Compression)
	}
	if cfg.RateLimit.DownloadLimit != 10 {
		t.Errorf("download_limit = %d, want 10", cfg.RateLimit.DownloadLimit)
	}
	if cfg.WindowDuration() != time.Second {
		t.Errorf("window = %v, want 1s", cfg.WindowDuration())
	}
}

func TestLoadRequiresSymvaultConfig(t *testing.T) {
	orig := os.Getenv("SYMVAULT_CONFIG")
	defer os.Setenv("SYMVAULT_CONFIG", orig)
	os.Unsetenv("SYMVAULT_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("Load without SYMVAULT_CONFIG succeeded, want error")
	}
	if !strings.Contains(err.Error(), "SYMVAULT_CONFIG") {
		t.Errorf("error %q does not mention SYMVAULT_CONFIG", err)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
service:
  listen: ":9000"
store:
  root: /var/lib/symvault/blobs
index:
  path: /var/lib/symvault/index.db
ratelimit:
  download_limit: 3
auth:
  tokens:
    - token: sekrit
      org: acme
      project: web
      scopes: [lookup, download]
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	if cfg.Service.Listen != ":9000" {
		t.Errorf("listen = %q, want :9000", cfg.Service.Listen)
	}
	// Unset fields keep their defaults.
	if cfg.Service.ShutdownTimeout != "30s" {
		t.Errorf("shutdown_timeout = %q, want default 30s", cfg.Service.ShutdownTimeout)
	}
	if cfg.Store.Compression != "zstd" {
		t.Errorf("compression = %q, want default zstd", cfg.Store.Compression)
	}
	if cfg.RateLimit.DownloadLimit != 3 {
		t.Errorf("download_limit = %d, want 3", cfg.RateLimit.DownloadLimit)
	}
	if len(cfg.Auth.Tokens) != 1 {
		t.Fatalf("tokens = %d, want 1", len(cfg.Auth.Tokens))
	}
	token := cfg.Auth.Tokens[0]
	if token.Org != "acme" || token.Project != "web" {
		t.Errorf("token scope = %s/%s, want acme/web", token.Org, token.Project)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config failed validation: %v", err)
	}
}

func TestLoadFileExpandsVariables(t *testing.T) {
	t.Setenv("SYMVAULT_DATA", "/srv/symvault")

	path := writeConfig(t, `
store:
  root: ${SYMVAULT_DATA}/blobs
index:
  path: ${SYMVAULT_DATA}/index.db
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}
	if cfg.Store.Root != "/srv/symvault/blobs" {
		t.Errorf("store root = %q, want /srv/symvault/blobs", cfg.Store.Root)
	}
	if cfg.Index.Path != "/srv/symvault/index.db" {
		t.Errorf("index path = %q, want /srv/symvault/index.db", cfg.Index.Path)
	}
}

func TestExpandVarsDefault(t *testing.T) {
	got := expandVars("${DOES_NOT_EXIST_ANYWHERE:-/fallback}/x", nil)
	if got != "/fallback/x" {
		t.Errorf("expanded = %q, want /fallback/x", got)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Compression = "brotli"
	cfg.RateLimit.Window = "soon"
	cfg.Auth.Tokens = []TokenConfig{{Token: "t", Org: "acme", Project: "web", Scopes: []string{"admin"}}}
	// store.root and index.path left empty.

	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid config passed validation")
	}
	for _, want := range []string{
		"store.root",
		"index.path",
		"store.compression",
		"ratelimit.window",
		`unknown scope "admin"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateTokenFields(t *testing.T) {
	cfg := Default()
	cfg.Store.Root = "/tmp/blobs"
	cfg.Index.Path = "/tmp/index.db"
	cfg.Auth.Tokens = []TokenConfig{{Scopes: []string{"lookup"}}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("token without credentials passed validation")
	}
	for _, want := range []string{".token is required", ".org is required", ".project is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q:\n%v", want, err)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Store.Root = filepath.Join(base, "blobs")
	cfg.Index.Path = filepath.Join(base, "db", "index.db")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("ensure paths: %v", err)
	}
	for _, dir := range []string{cfg.Store.Root, filepath.Join(base, "db")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}
