// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lookup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/bureau-foundation/symvault/lib/bundleindex"
	"github.com/bureau-foundation/symvault/lib/debugid"
)

// fakeIndex resolves from a static debug-id → refs table and records
// the queries it receives.
type fakeIndex struct {
	refs    map[string][]bundleindex.BundleRef
	err     error
	queries [][]debugid.ID
}

func (f *fakeIndex) Resolve(ctx context.Context, org string, ids []debugid.ID) ([]bundleindex.BundleRef, error) {
	f.queries = append(f.queries, ids)
	if f.err != nil {
		return nil, f.err
	}
	seen := make(map[string]bool)
	var refs []bundleindex.BundleRef
	for _, id := range ids {
		for _, ref := range f.refs[id.String()] {
			if seen[ref.BlobID] {
				continue
			}
			seen[ref.BlobID] = true
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func newTestResolver(index *fakeIndex) *Resolver {
	return NewResolver(index, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const (
	idA = "aaaaaaaa-0000-0000-0000-000000000001"
	idB = "aaaaaaaa-0000-0000-0000-000000000002"
	idC = "aaaaaaaa-0000-0000-0000-000000000003"
)

func sharedBlobIndex() *fakeIndex {
	x := bundleindex.BundleRef{BlobID: "blob-x", BundleID: "bundle-x", Size: 10}
	y := bundleindex.BundleRef{BlobID: "blob-y", BundleID: "bundle-y", Size: 20}
	return &fakeIndex{refs: map[string][]bundleindex.BundleRef{
		idA: {x},
		idB: {x},
		idC: {y},
	}}
}

func urlSet(descriptors []Descriptor) map[string]bool {
	set := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		set[d.URL] = true
	}
	return set
}

func TestLookupDedupsSharedBlob(t *testing.T) {
	resolver := newTestResolver(sharedBlobIndex())

	descriptors, err := resolver.Lookup(context.Background(), "acme",
		Query{DebugIDs: []string{idA, idB}}, "https://vault.test/artifact-lookup")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("got %d descriptors, want 1 (ids share a blob)", len(descriptors))
	}
	if descriptors[0].Type != "bundle" {
		t.Errorf("type = %q, want bundle", descriptors[0].Type)
	}
	want := "https://vault.test/artifact-lookup?download=blob-x"
	if descriptors[0].URL != want {
		t.Errorf("url = %q, want %q", descriptors[0].URL, want)
	}
}

func TestLookupFanOut(t *testing.T) {
	resolver := newTestResolver(sharedBlobIndex())

	descriptors, err := resolver.Lookup(context.Background(), "acme",
		Query{DebugIDs: []string{idA, idC}}, "https://vault.test/artifact-lookup")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	set := urlSet(descriptors)
	if len(set) != 2 {
		t.Fatalf("got %d distinct descriptors, want 2", len(set))
	}
	for _, blob := range []string{"blob-x", "blob-y"} {
		if !set["https://vault.test/artifact-lookup?download="+blob] {
			t.Errorf("missing descriptor for %s", blob)
		}
	}
}

func TestLookupDropsMalformedIDs(t *testing.T) {
	index := sharedBlobIndex()
	resolver := newTestResolver(index)

	// One malformed id mixed with a valid one behaves exactly as if
	// the malformed one were absent.
	descriptors, err := resolver.Lookup(context.Background(), "acme",
		Query{DebugIDs: []string{"not-a-debug-id", idA}}, "https://vault.test/artifact-lookup")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(descriptors))
	}
	if len(index.queries) != 1 || len(index.queries[0]) != 1 {
		t.Fatalf("index queried with %v, want exactly the one valid id", index.queries)
	}
}

func TestLookupAllMalformedSkipsIndex(t *testing.T) {
	index := sharedBlobIndex()
	resolver := newTestResolver(index)

	descriptors, err := resolver.Lookup(context.Background(), "acme",
		Query{DebugIDs: []string{"nope", ""}}, "https://vault.test/artifact-lookup")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(descriptors) != 0 {
		t.Fatalf("got %d descriptors, want 0", len(descriptors))
	}
	if descriptors == nil {
		t.Fatal("descriptors is nil, want empty slice (serializes as [])")
	}
	if len(index.queries) != 0 {
		t.Errorf("index queried %d times, want 0", len(index.queries))
	}
}

func TestLookupIndexFailurePropagates(t *testing.T) {
	backendErr := errors.New("disk on fire")
	resolver := newTestResolver(&fakeIndex{err: backendErr})

	_, err := resolver.Lookup(context.Background(), "acme",
		Query{DebugIDs: []string{idA}}, "https://vault.test/artifact-lookup")
	if !errors.Is(err, backendErr) {
		t.Fatalf("lookup error = %v, want wrapped backend error", err)
	}
}

func TestLookupIgnoresArtifactMatchingParameters(t *testing.T) {
	resolver := newTestResolver(sharedBlobIndex())

	// url/release/dist select individual artifacts; the path is an
	// inert extension point and must contribute nothing.
	descriptors, err := resolver.Lookup(context.Background(), "acme", Query{
		DebugIDs: []string{idA},
		URL:      "app.js.map",
		Release:  "1.2.3",
		Dist:     "android",
	}, "https://vault.test/artifact-lookup")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(descriptors) != 1 {
		t.Fatalf("got %d descriptors, want 1 (bundle match only)", len(descriptors))
	}
}
