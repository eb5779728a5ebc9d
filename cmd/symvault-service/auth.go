// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bureau-foundation/symvault/lib/config"
	"github.com/bureau-foundation/symvault/lib/secret"
)

// Caller is the authenticated identity behind a request: the
// organization and project the presented token is bound to, and the
// scopes it grants.
type Caller struct {
	Org     string
	Project string
	scopes  map[string]bool
}

// HasScope reports whether the caller's token grants the scope.
func (c *Caller) HasScope(scope string) bool {
	return c.scopes[scope]
}

// AccessGate decides whether an authenticated caller may download
// blobs. The policy behind the decision is the gate's business; the
// handler only consumes the boolean.
type AccessGate interface {
	HasDownloadPermission(caller *Caller) bool
}

// scopeGate is the default gate: permission follows the token's
// scope list.
type scopeGate struct{}

func (scopeGate) HasDownloadPermission(caller *Caller) bool {
	return caller.HasScope("download")
}

// tokenTable authenticates bearer tokens against the static token
// list from the config file. Token values are held in guarded memory
// and compared in constant time.
type tokenTable struct {
	entries []tokenEntry
}

type tokenEntry struct {
	token  *secret.Buffer
	caller Caller
}

// newTokenTable builds the table from config. The table owns the
// token buffers; Close releases them.
func newTokenTable(tokens []config.TokenConfig) (*tokenTable, error) {
	table := &tokenTable{}
	for _, tc := range tokens {
		buffer, err := secret.NewFromBytes([]byte(tc.Token))
		if err != nil {
			table.Close()
			return nil, fmt.Errorf("loading token for %s/%s: %w", tc.Org, tc.Project, err)
		}
		scopes := make(map[string]bool, len(tc.Scopes))
		for _, scope := range tc.Scopes {
			scopes[scope] = true
		}
		table.entries = append(table.entries, tokenEntry{
			token: buffer,
			caller: Caller{
				Org:     tc.Org,
				Project: tc.Project,
				scopes:  scopes,
			},
		})
	}
	return table, nil
}

// Authenticate resolves the request's bearer token to a caller.
// Returns nil when the token is missing or unknown. Every entry is
// compared so timing does not reveal which token prefix matched.
func (t *tokenTable) Authenticate(request *http.Request) *Caller {
	header := request.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || presented == "" {
		return nil
	}

	var match *Caller
	for i := range t.entries {
		if t.entries[i].token.Equal([]byte(presented)) {
			match = &t.entries[i].caller
		}
	}
	return match
}

// Close releases the guarded token buffers.
func (t *tokenTable) Close() {
	for _, entry := range t.entries {
		entry.token.Close()
	}
	t.entries = nil
}
