// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bundleindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/symvault/lib/clock"
	"github.com/bureau-foundation/symvault/lib/debugid"
	"github.com/bureau-foundation/symvault/lib/sqlitepool"
)

// ErrNotFound reports that the named bundle does not exist in the
// caller's organization.
var ErrNotFound = errors.New("bundle not found")

const schema = `
CREATE TABLE IF NOT EXISTS artifact_bundles (
    bundle_id  TEXT PRIMARY KEY,
    org_id     TEXT NOT NULL,
    blob_id    TEXT NOT NULL,
    size       INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS artifact_bundles_org_blob
    ON artifact_bundles (org_id, blob_id);
CREATE TABLE IF NOT EXISTS debug_id_bundles (
    debug_id  TEXT NOT NULL,
    bundle_id TEXT NOT NULL REFERENCES artifact_bundles (bundle_id)
        ON DELETE CASCADE,
    org_id    TEXT NOT NULL,
    PRIMARY KEY (debug_id, bundle_id)
);
CREATE INDEX IF NOT EXISTS debug_id_bundles_org_debug
    ON debug_id_bundles (org_id, debug_id);
`

// Bundle is one uploaded artifact bundle row.
type Bundle struct {
	// BundleID is the stable bundle identifier assigned at ingest.
	BundleID string
	// OrgID is the owning organization. Every query filters on it.
	OrgID string
	// BlobID is the content digest of the backing blob in the store.
	BlobID string
	// Size is the uncompressed bundle size in bytes.
	Size int64
}

// BundleRef is one entry in a Resolve result: a distinct backing blob
// and a representative bundle that references it.
type BundleRef struct {
	// BlobID identifies the backing blob. Resolve results are unique
	// on this field.
	BlobID string
	// BundleID is the lexically smallest bundle id among the bundles
	// sharing the blob.
	BundleID string
	// Size is the uncompressed blob size in bytes.
	Size int64
}

// Stats summarizes the index contents.
type Stats struct {
	Bundles      int64
	Associations int64
	Blobs        int64
	TotalSize    int64
}

// Config holds the parameters for opening an index.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string
	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int
	// Clock stamps bundle creation times. Required.
	Clock clock.Clock
	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Index is the debug-id to bundle mapping, backed by SQLite. Safe for
// concurrent use; each call borrows a pooled connection.
type Index struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open opens (creating if needed) the index database and applies the
// schema. The caller must Close the index when done.
func Open(cfg Config) (*Index, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("bundleindex: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("bundleindex: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			// The association table cascades on bundle deletion.
			if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys=ON", nil); err != nil {
				return err
			}
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bundleindex: %w", err)
	}

	return &Index{pool: pool, clock: cfg.Clock, logger: cfg.Logger}, nil
}

// Close closes the underlying connection pool.
func (x *Index) Close() error {
	return x.pool.Close()
}

// Resolve maps a set of normalized debug ids to the distinct set of
// backing blobs that contain at least one of them, scoped to org. Ids
// with no matches contribute nothing; an all-miss (or empty) input
// yields an empty result, not an error. Bundles sharing a backing blob
// collapse to one BundleRef. Result order is unspecified.
func (x *Index) Resolve(ctx context.Context, org string, ids []debugid.ID) ([]BundleRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	conn, err := x.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("bundleindex: resolve: %w", err)
	}
	defer x.pool.Put(conn)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := fmt.Sprintf(`SELECT b.blob_id, min(b.bundle_id), max(b.size)
		FROM debug_id_bundles AS d
		JOIN artifact_bundles AS b ON b.bundle_id = d.bundle_id
		WHERE d.org_id = ? AND b.org_id = ? AND d.debug_id IN (%s)
		GROUP BY b.blob_id`, placeholders)

	args := make([]any, 0, len(ids)+2)
	args = append(args, org, org)
	for _, id := range ids {
		args = append(args, id.String())
	}

	var refs []BundleRef
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			refs = append(refs, BundleRef{
				BlobID:   stmt.ColumnText(0),
				BundleID: stmt.ColumnText(1),
				Size:     stmt.ColumnInt64(2),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bundleindex: resolve: %w", err)
	}
	return refs, nil
}

// Insert records a bundle and its debug-id associations in one
// transaction. Re-inserting an existing bundle id or association is a
// no-op, so repeated ingest of the same manifest is idempotent.
func (x *Index) Insert(ctx context.Context, bundle Bundle, ids []debugid.ID) (err error) {
	if bundle.BundleID == "" || bundle.OrgID == "" || bundle.BlobID == "" {
		return fmt.Errorf("bundleindex: insert: bundle id, org id, and blob id are required")
	}

	conn, err := x.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("bundleindex: insert: %w", err)
	}
	defer x.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("bundleindex: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `INSERT INTO artifact_bundles
		(bundle_id, org_id, blob_id, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (bundle_id) DO NOTHING`, &sqlitex.ExecOptions{
		Args: []any{
			bundle.BundleID,
			bundle.OrgID,
			bundle.BlobID,
			bundle.Size,
			x.clock.Now().Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("bundleindex: insert bundle %s: %w", bundle.BundleID, err)
	}

	for _, id := range ids {
		err = sqlitex.Execute(conn, `INSERT OR IGNORE INTO debug_id_bundles
			(debug_id, bundle_id, org_id) VALUES (?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{id.String(), bundle.BundleID, bundle.OrgID},
		})
		if err != nil {
			return fmt.Errorf("bundleindex: insert association %s -> %s: %w", id, bundle.BundleID, err)
		}
	}

	return nil
}

// HasBlob reports whether any bundle in org references the blob.
func (x *Index) HasBlob(ctx context.Context, org, blobID string) (bool, error) {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("bundleindex: has blob: %w", err)
	}
	defer x.pool.Put(conn)

	var found bool
	err = sqlitex.Execute(conn, `SELECT 1 FROM artifact_bundles
		WHERE org_id = ? AND blob_id = ? LIMIT 1`, &sqlitex.ExecOptions{
		Args: []any{org, blobID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("bundleindex: has blob %s: %w", blobID, err)
	}
	return found, nil
}

// ReferencedBlobs returns the blob ids referenced by any bundle in any
// organization. Garbage collection treats this as the live set.
func (x *Index) ReferencedBlobs(ctx context.Context) (map[string]struct{}, error) {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("bundleindex: referenced blobs: %w", err)
	}
	defer x.pool.Put(conn)

	blobs := make(map[string]struct{})
	err = sqlitex.Execute(conn, `SELECT DISTINCT blob_id FROM artifact_bundles`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blobs[stmt.ColumnText(0)] = struct{}{}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bundleindex: referenced blobs: %w", err)
	}
	return blobs, nil
}

// DeleteBundle removes a bundle and (via cascade) its associations.
// Returns ErrNotFound when org has no bundle with that id. The backing
// blob is not touched; gc reclaims blobs that lose their last
// reference.
func (x *Index) DeleteBundle(ctx context.Context, org, bundleID string) error {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("bundleindex: delete bundle: %w", err)
	}
	defer x.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM artifact_bundles
		WHERE org_id = ? AND bundle_id = ?`, &sqlitex.ExecOptions{
		Args: []any{org, bundleID},
	})
	if err != nil {
		return fmt.Errorf("bundleindex: delete bundle %s: %w", bundleID, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("bundleindex: delete bundle %s: %w", bundleID, ErrNotFound)
	}

	x.logger.Info("bundle deleted", "org", org, "bundle_id", bundleID)
	return nil
}

// Stats returns totals across all organizations.
func (x *Index) Stats(ctx context.Context) (Stats, error) {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("bundleindex: stats: %w", err)
	}
	defer x.pool.Put(conn)

	var stats Stats
	err = sqlitex.Execute(conn, `SELECT
		count(*),
		(SELECT count(*) FROM debug_id_bundles),
		count(DISTINCT blob_id),
		coalesce(sum(size), 0)
		FROM artifact_bundles`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			stats.Bundles = stmt.ColumnInt64(0)
			stats.Associations = stmt.ColumnInt64(1)
			stats.Blobs = stmt.ColumnInt64(2)
			stats.TotalSize = stmt.ColumnInt64(3)
			return nil
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("bundleindex: stats: %w", err)
	}
	return stats, nil
}

// String renders a Stats summary for CLI output.
func (s Stats) String() string {
	return fmt.Sprintf("bundles=%d associations=%d blobs=%d total_size=%d",
		s.Bundles, s.Associations, s.Blobs, s.TotalSize)
}
