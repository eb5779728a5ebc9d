// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lookup resolves raw debug identifier queries into artifact
// descriptors: the response values that tell a client where to
// download each matching bundle.
package lookup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/symvault/lib/bundleindex"
	"github.com/bureau-foundation/symvault/lib/debugid"
)

// Descriptor is one lookup result. Transient: built fresh per request,
// never persisted.
type Descriptor struct {
	// Type is "bundle" for whole-bundle results. Individual artifact
	// results would carry "file", but that path is inert (see Query).
	Type string `json:"type"`
	// URL dereferences to a direct download of the backing blob.
	URL string `json:"url"`
	// AbsPath and Headers are populated only for individual artifact
	// results, which nothing produces today.
	AbsPath string            `json:"abs_path,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Index is the subset of the bundle index the resolver needs.
type Index interface {
	Resolve(ctx context.Context, org string, ids []debugid.ID) ([]bundleindex.BundleRef, error)
}

// Query carries the request parameters for one lookup.
type Query struct {
	// DebugIDs are the raw, unnormalized identifier strings from the
	// request. Malformed entries are dropped, never an error.
	DebugIDs []string

	// URL, Release, and Dist select individual artifacts by URL
	// substring within a release. The matching path is an extension
	// point that currently contributes nothing; the parameters are
	// accepted so clients can send them, and ignored.
	URL     string
	Release string
	Dist    string
}

// Resolver turns lookup queries into descriptor lists.
type Resolver struct {
	index  Index
	logger *slog.Logger
}

// NewResolver creates a resolver over the given index.
func NewResolver(index Index, logger *slog.Logger) *Resolver {
	if index == nil {
		panic("lookup.Resolver: index is required")
	}
	if logger == nil {
		panic("lookup.Resolver: logger is required")
	}
	return &Resolver{index: index, logger: logger}
}

// Lookup resolves a query for org into descriptors. baseURL is the
// request's own URL without query parameters; each descriptor's URL is
// baseURL + "?download=" + the blob id.
//
// Malformed debug ids are dropped silently, so a request mixing valid
// and invalid identifiers behaves as if the invalid ones were absent.
// Only index failures return an error. The returned slice is never
// nil, and callers must treat it as unordered.
func (r *Resolver) Lookup(ctx context.Context, org string, query Query, baseURL string) ([]Descriptor, error) {
	descriptors := []Descriptor{}

	ids := debugid.NormalizeAll(query.DebugIDs)
	if dropped := len(query.DebugIDs) - len(ids); dropped > 0 {
		r.logger.Debug("dropped debug ids from lookup",
			"org", org,
			"dropped", dropped,
			"kept", len(ids),
		)
	}

	if len(ids) > 0 {
		refs, err := r.index.Resolve(ctx, org, ids)
		if err != nil {
			return nil, fmt.Errorf("lookup: %w", err)
		}
		for _, ref := range refs {
			descriptors = append(descriptors, Descriptor{
				Type: "bundle",
				URL:  baseURL + "?download=" + ref.BlobID,
			})
		}
	}

	// Individual artifact matching by URL substring within
	// query.Release/query.Dist would be appended here. The path is
	// deliberately inert: it contributes nothing until specified.

	return descriptors, nil
}
