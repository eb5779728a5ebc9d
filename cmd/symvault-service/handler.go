// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bureau-foundation/symvault/lib/blobstore"
	"github.com/bureau-foundation/symvault/lib/bundleindex"
	"github.com/bureau-foundation/symvault/lib/debugid"
	"github.com/bureau-foundation/symvault/lib/lookup"
	"github.com/bureau-foundation/symvault/lib/ratelimit"
)

// downloadChunkSize is the response write granularity for blob
// downloads. The store hands out larger decompressed chunks; this
// bounds what sits in the response path at once.
const downloadChunkSize = 4096

// handler routes the service's HTTP surface. One instance serves all
// requests; all mutable state lives in the rate limiter.
type handler struct {
	store    *blobstore.Store
	index    *bundleindex.Index
	resolver *lookup.Resolver
	limiter  *ratelimit.Limiter
	tokens   *tokenTable
	gate     AccessGate
	logger   *slog.Logger

	// advertiseURL, when set, overrides the request-derived base URL
	// in download indirection URLs.
	advertiseURL  string
	downloadLimit int
}

func newHandler(h handler) *handler {
	if h.store == nil || h.index == nil || h.resolver == nil ||
		h.limiter == nil || h.tokens == nil || h.gate == nil || h.logger == nil {
		panic("symvault-service: handler is missing a collaborator")
	}
	if h.downloadLimit <= 0 {
		panic("symvault-service: downloadLimit must be positive")
	}
	return &h
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/artifact-lookup", h.handleArtifactLookup)
	mux.HandleFunc("/artifact-bundle", h.handleUpload)
	return mux
}

func (h *handler) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(writer, "ok")
}

// handleArtifactLookup serves both halves of the lookup surface: the
// descriptor query, and the download indirection those descriptors
// point back at.
func (h *handler) handleArtifactLookup(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		http.Error(writer, "", http.StatusMethodNotAllowed)
		return
	}

	caller := h.tokens.Authenticate(request)
	if caller == nil {
		// Forbidden, not a challenge: unauthenticated callers learn
		// nothing about the surface.
		http.Error(writer, "", http.StatusForbidden)
		return
	}

	if blobID := request.URL.Query().Get("download"); blobID != "" {
		h.handleDownload(writer, request, caller, blobID)
		return
	}
	h.handleLookup(writer, request, caller)
}

func (h *handler) handleLookup(writer http.ResponseWriter, request *http.Request, caller *Caller) {
	if !caller.HasScope("lookup") {
		http.Error(writer, "", http.StatusForbidden)
		return
	}

	query := request.URL.Query()
	descriptors, err := h.resolver.Lookup(request.Context(), caller.Org, lookup.Query{
		DebugIDs: splitDebugIDs(query["debug_ids"]),
		URL:      query.Get("url"),
		Release:  query.Get("release"),
		Dist:     query.Get("dist"),
	}, h.baseURL(request))
	if err != nil {
		h.logger.Error("lookup failed",
			"org", caller.Org,
			"error", err,
		)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(descriptors); err != nil {
		h.logger.Error("writing lookup response", "error", err)
	}
}

// handleDownload streams a blob. Order is fixed: access gate, rate
// limiter, index scope check, then the store. A forbidden caller
// never consumes rate-limit budget; a rate-limited caller never
// touches the index or store.
func (h *handler) handleDownload(writer http.ResponseWriter, request *http.Request, caller *Caller, blobID string) {
	if !h.gate.HasDownloadPermission(caller) {
		http.Error(writer, "", http.StatusForbidden)
		return
	}

	key := "download:" + blobID + ":" + caller.Project
	if !h.limiter.Allow(key, h.downloadLimit) {
		h.logger.Info("download rate limited",
			"org", caller.Org,
			"project", caller.Project,
			"blob_id", blobID,
		)
		http.Error(writer, "", http.StatusForbidden)
		return
	}

	// The blob must be referenced by a bundle in the caller's own
	// organization. A blob that exists but belongs to someone else
	// is indistinguishable from one that never existed.
	referenced, err := h.index.HasBlob(request.Context(), caller.Org, blobID)
	if err != nil {
		h.logger.Error("download index check failed",
			"org", caller.Org,
			"blob_id", blobID,
			"error", err,
		)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}
	if !referenced {
		http.Error(writer, "", http.StatusNotFound)
		return
	}

	handle, err := h.store.Open(blobID)
	if err != nil {
		// The external contract collapses every storage failure into
		// 404; the log line keeps the classes apart so an outage is
		// not mistaken for a deleted blob.
		class := "unreadable"
		if errors.Is(err, blobstore.ErrNotFound) {
			class = "absent"
		} else if errors.Is(err, blobstore.ErrCorrupt) {
			class = "corrupt"
		}
		h.logger.Warn("download blob open failed",
			"org", caller.Org,
			"project", caller.Project,
			"blob_id", blobID,
			"class", class,
			"error", err,
		)
		http.Error(writer, "", http.StatusNotFound)
		return
	}
	defer handle.Close()

	writer.Header().Set("Content-Type", "application/octet-stream")
	writer.Header().Set("Content-Length", strconv.FormatInt(handle.Size(), 10))
	writer.WriteHeader(http.StatusOK)

	buffer := make([]byte, downloadChunkSize)
	for {
		n, readErr := handle.Read(buffer)
		if n > 0 {
			if _, writeErr := writer.Write(buffer[:n]); writeErr != nil {
				// Client gone or connection broken; the deferred
				// Close releases the handle.
				h.logger.Debug("download write aborted",
					"blob_id", blobID,
					"error", writeErr,
				)
				return
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				// Headers are out; all we can do is cut the stream
				// short of Content-Length so the client notices.
				h.logger.Error("download read failed mid-stream",
					"blob_id", blobID,
					"error", readErr,
				)
			}
			return
		}
	}
}

// uploadResponse is the ingest result body.
type uploadResponse struct {
	BundleID string `json:"bundle_id"`
	BlobID   string `json:"blob_id"`
	Size     int64  `json:"size"`
}

// handleUpload ingests one bundle: the body is spooled into the store
// (hashed and compressed on the way), then the bundle row and its
// debug-id associations are recorded. Malformed debug ids are dropped
// with the same tolerance as lookup, but an upload with no valid ids
// would be unreachable forever, so it is rejected.
func (h *handler) handleUpload(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(writer, "", http.StatusMethodNotAllowed)
		return
	}

	caller := h.tokens.Authenticate(request)
	if caller == nil || !caller.HasScope("upload") {
		http.Error(writer, "", http.StatusForbidden)
		return
	}

	ids := debugid.NormalizeAll(splitDebugIDs(request.URL.Query()["debug_ids"]))
	if len(ids) == 0 {
		http.Error(writer, "at least one valid debug_ids parameter is required", http.StatusBadRequest)
		return
	}

	result, err := h.store.Write(request.Body)
	if err != nil {
		h.logger.Error("upload store write failed",
			"org", caller.Org,
			"error", err,
		)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}

	bundle := bundleindex.Bundle{
		BundleID: uuid.NewString(),
		OrgID:    caller.Org,
		BlobID:   result.BlobID,
		Size:     result.Size,
	}
	if err := h.index.Insert(request.Context(), bundle, ids); err != nil {
		h.logger.Error("upload index insert failed",
			"org", caller.Org,
			"blob_id", result.BlobID,
			"error", err,
		)
		http.Error(writer, "", http.StatusInternalServerError)
		return
	}

	h.logger.Info("bundle ingested",
		"org", caller.Org,
		"bundle_id", bundle.BundleID,
		"blob_id", bundle.BlobID,
		"size", bundle.Size,
		"debug_ids", len(ids),
		"deduplicated", result.Existed,
	)

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(writer).Encode(uploadResponse{
		BundleID: bundle.BundleID,
		BlobID:   bundle.BlobID,
		Size:     bundle.Size,
	}); err != nil {
		h.logger.Error("writing upload response", "error", err)
	}
}

// baseURL is the URL a lookup response's download links point back at:
// the advertised URL when configured, otherwise this request's own
// scheme, host, and path.
func (h *handler) baseURL(request *http.Request) string {
	if h.advertiseURL != "" {
		return strings.TrimSuffix(h.advertiseURL, "/") + request.URL.Path
	}
	scheme := "http"
	if request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + request.Host + request.URL.Path
}

// splitDebugIDs flattens repeated debug_ids parameters, splitting
// comma-separated values so both ?debug_ids=a&debug_ids=b and
// ?debug_ids=a,b work.
func splitDebugIDs(values []string) []string {
	var ids []string
	for _, value := range values {
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
