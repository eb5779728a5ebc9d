// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the symvault service and the
// offline CLI commands that open the store and index directly.
type Config struct {
	// Service configures the HTTP front-end.
	Service ServiceConfig `yaml:"service"`

	// Store configures the blob store.
	Store StoreConfig `yaml:"store"`

	// Index configures the bundle index database.
	Index IndexConfig `yaml:"index"`

	// RateLimit configures the per-resource download limiter.
	RateLimit RateLimitConfig `yaml:"ratelimit"`

	// Auth lists the static bearer tokens the service accepts.
	Auth AuthConfig `yaml:"auth"`
}

// ServiceConfig configures the HTTP service.
type ServiceConfig struct {
	// Listen is the TCP listen address. Default: 127.0.0.1:3142.
	Listen string `yaml:"listen"`

	// AdvertiseURL overrides the base URL used when synthesizing
	// download indirection URLs. When empty, the base URL is derived
	// from each request's scheme, host, and path.
	AdvertiseURL string `yaml:"advertise_url"`

	// ShutdownTimeout is how long to wait for in-flight requests to
	// drain on shutdown, as a duration string. Default: 30s.
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// StoreConfig configures the blob store.
type StoreConfig struct {
	// Root is the store directory. Required.
	Root string `yaml:"root"`

	// Compression selects chunk compression: zstd, lz4, none, or
	// auto (probe each blob's first chunk). Default: zstd.
	Compression string `yaml:"compression"`

	// ChunkSize is the uncompressed bytes per chunk. Zero means the
	// store default.
	ChunkSize int64 `yaml:"chunk_size"`

	// EncryptionKeyFile is the path to a hex-encoded 32-byte master
	// key. Empty disables at-rest encryption.
	EncryptionKeyFile string `yaml:"encryption_key_file"`
}

// IndexConfig configures the bundle index database.
type IndexConfig struct {
	// Path is the SQLite database file. Required.
	Path string `yaml:"path"`

	// PoolSize is the connection pool size. Zero means the pool
	// default.
	PoolSize int `yaml:"pool_size"`
}

// RateLimitConfig configures the download rate limiter.
type RateLimitConfig struct {
	// Window is the fixed window duration string. Default: 1s.
	Window string `yaml:"window"`

	// DownloadLimit is the allowed downloads per (blob, project) key
	// per window. Default: 10.
	DownloadLimit int `yaml:"download_limit"`
}

// AuthConfig holds the static token table.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig is one bearer token and the scope it is bound to.
type TokenConfig struct {
	// Token is the bearer token value presented by the client.
	Token string `yaml:"token"`

	// Org is the organization the token is bound to.
	Org string `yaml:"org"`

	// Project is the project within the organization, used for
	// rate-limit keys.
	Project string `yaml:"project"`

	// Scopes is the subset of {lookup, download, upload} the token
	// grants.
	Scopes []string `yaml:"scopes"`
}

// Default returns the default configuration, used as a base before
// loading the config file. The defaults ensure every field has a
// sensible zero-value; the config file is still required for the
// store root and index path.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Listen:          "127.0.0.1:3142",
			ShutdownTimeout: "30s",
		},
		Store: StoreConfig{
			Compression: "zstd",
		},
		RateLimit: RateLimitConfig{
			Window:        "1s",
			DownloadLimit: 10,
		},
	}
}

// Load loads configuration from the SYMVAULT_CONFIG environment
// variable. There are no fallbacks: if SYMVAULT_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("SYMVAULT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SYMVAULT_CONFIG environment variable not set; " +
			"set it to the path of your symvault.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over Default() and expanding ${VAR} patterns in paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.Root = expandVars(c.Store.Root, vars)
	c.Store.EncryptionKeyFile = expandVars(c.Store.EncryptionKeyFile, vars)
	c.Index.Path = expandVars(c.Index.Path, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var validScopes = map[string]bool{
	"lookup":   true,
	"download": true,
	"upload":   true,
}

var validCompressions = []string{"zstd", "lz4", "none", "auto"}

// Validate checks the configuration for errors, joining all problems
// into one error so a broken file is reported in a single pass.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Listen == "" {
		errs = append(errs, fmt.Errorf("service.listen is required"))
	}
	if _, err := time.ParseDuration(c.Service.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("service.shutdown_timeout: %w", err))
	}

	if c.Store.Root == "" {
		errs = append(errs, fmt.Errorf("store.root is required"))
	}
	if !contains(validCompressions, c.Store.Compression) {
		errs = append(errs, fmt.Errorf("store.compression must be one of: %v", validCompressions))
	}
	if c.Store.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("store.chunk_size must not be negative"))
	}

	if c.Index.Path == "" {
		errs = append(errs, fmt.Errorf("index.path is required"))
	}

	if _, err := time.ParseDuration(c.RateLimit.Window); err != nil {
		errs = append(errs, fmt.Errorf("ratelimit.window: %w", err))
	}
	if c.RateLimit.DownloadLimit <= 0 {
		errs = append(errs, fmt.Errorf("ratelimit.download_limit must be positive"))
	}

	for i, token := range c.Auth.Tokens {
		if token.Token == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d].token is required", i))
		}
		if token.Org == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d].org is required", i))
		}
		if token.Project == "" {
			errs = append(errs, fmt.Errorf("auth.tokens[%d].project is required", i))
		}
		for _, scope := range token.Scopes {
			if !validScopes[scope] {
				errs = append(errs, fmt.Errorf("auth.tokens[%d]: unknown scope %q", i, scope))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout. Call
// Validate first; an unparsable value falls back to 30 seconds.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Service.ShutdownTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// WindowDuration returns the parsed rate-limit window. Call Validate
// first; an unparsable value falls back to 1 second.
func (c *Config) WindowDuration() time.Duration {
	d, err := time.ParseDuration(c.RateLimit.Window)
	if err != nil {
		return time.Second
	}
	return d
}

// EnsurePaths creates the store root and the index database's parent
// directory if they do not exist.
func (c *Config) EnsurePaths() error {
	for _, dir := range []string{c.Store.Root, filepath.Dir(c.Index.Path)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
