// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/symvault/lib/lookup"
)

// serviceFlags are the connection flags shared by every command that
// talks to a running symvault-service.
type serviceFlags struct {
	url   string
	token string
}

func (f *serviceFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.url, "url", os.Getenv("SYMVAULT_URL"),
		"base URL of the symvault service (default: $SYMVAULT_URL)")
	flags.StringVar(&f.token, "token", os.Getenv("SYMVAULT_TOKEN"),
		"bearer token (default: $SYMVAULT_TOKEN)")
}

func (f *serviceFlags) client() (*client, error) {
	if f.url == "" {
		return nil, fmt.Errorf("--url or SYMVAULT_URL is required")
	}
	if f.token == "" {
		return nil, fmt.Errorf("--token or SYMVAULT_TOKEN is required")
	}
	return &client{
		baseURL: strings.TrimSuffix(f.url, "/"),
		token:   f.token,
		http:    http.DefaultClient,
	}, nil
}

// client is a thin HTTP client for the service's three endpoints.
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) do(request *http.Request) (*http.Response, error) {
	request.Header.Set("Authorization", "Bearer "+c.token)
	response, err := c.http.Do(request)
	if err != nil {
		return nil, err
	}
	switch response.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return response, nil
	case http.StatusForbidden:
		response.Body.Close()
		return nil, fmt.Errorf("forbidden: check the token's scopes (or retry later if rate limited)")
	case http.StatusNotFound:
		response.Body.Close()
		return nil, fmt.Errorf("not found")
	default:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		response.Body.Close()
		return nil, fmt.Errorf("service returned %s: %s", response.Status, strings.TrimSpace(string(body)))
	}
}

func (c *client) lookup(ctx context.Context, debugIDs []string) ([]lookup.Descriptor, error) {
	values := url.Values{}
	for _, id := range debugIDs {
		values.Add("debug_ids", id)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/artifact-lookup?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	response, err := c.do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	var descriptors []lookup.Descriptor
	if err := json.NewDecoder(response.Body).Decode(&descriptors); err != nil {
		return nil, fmt.Errorf("decoding lookup response: %w", err)
	}
	return descriptors, nil
}

// download streams a blob. The caller must close the returned body.
func (c *client) download(ctx context.Context, blobID string) (io.ReadCloser, int64, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/artifact-lookup?download="+url.QueryEscape(blobID), nil)
	if err != nil {
		return nil, 0, err
	}
	response, err := c.do(request)
	if err != nil {
		return nil, 0, err
	}
	return response.Body, response.ContentLength, nil
}

// uploadResult mirrors the service's ingest response body.
type uploadResult struct {
	BundleID string `json:"bundle_id"`
	BlobID   string `json:"blob_id"`
	Size     int64  `json:"size"`
}

func (c *client) upload(ctx context.Context, debugIDs []string, body io.Reader) (uploadResult, error) {
	values := url.Values{}
	for _, id := range debugIDs {
		values.Add("debug_ids", id)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/artifact-bundle?"+values.Encode(), body)
	if err != nil {
		return uploadResult{}, err
	}
	request.Header.Set("Content-Type", "application/octet-stream")

	response, err := c.do(request)
	if err != nil {
		return uploadResult{}, err
	}
	defer response.Body.Close()

	var result uploadResult
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return uploadResult{}, fmt.Errorf("decoding upload response: %w", err)
	}
	return result, nil
}
