package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	redline "github.com/redlinehq/redline-go"
)

// docCacheSchema stores one row per known document plus a fetch
// timestamp so staleness is decided per refresh, not per row.
const docCacheSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY,
	filename TEXT NOT NULL,
	uploaded_at TEXT NOT NULL DEFAULT '',
	comment_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cache_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// getCacheDir returns the cache directory path, preferring XDG_CACHE_HOME.
func getCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "redline"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	return filepath.Join(home, ".cache", "redline"), nil
}

// getDocCachePath returns the full path to the document cache database.
func getDocCachePath() (string, error) {
	dir, err := getCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "documents.db"), nil
}

// docCache is a local SQLite cache of document summaries, so repeated
// listing commands avoid a round trip while the cache is fresh.
type docCache struct {
	db *sql.DB
}

// openDocCache opens or creates the cache database. An empty path uses
// an in-memory database that lives for the process only.
func openDocCache(path string) (*docCache, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec(docCacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &docCache{db: db}, nil
}

// Close releases the database handle.
func (c *docCache) Close() error {
	return c.db.Close()
}

// Put replaces the cached document set and records the fetch time.
func (c *docCache) Put(ctx context.Context, docs []redline.DocumentSummary) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}

	for _, doc := range docs {
		query, args, err := sq.Insert("documents").
			Columns("id", "filename", "uploaded_at", "comment_count").
			Values(doc.ID, doc.Filename, doc.UploadedAt.UTC().Format(time.RFC3339), doc.CommentCount).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("cache document %d: %w", doc.ID, err)
		}
	}

	query, args, err := sq.Replace("cache_meta").
		Columns("key", "value").
		Values("fetched_at", time.Now().UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build meta upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record fetch time: %w", err)
	}

	return tx.Commit()
}

// Get returns the cached document set when it is younger than ttl. The
// boolean reports a usable cache hit.
func (c *docCache) Get(ctx context.Context, ttl time.Duration) ([]redline.DocumentSummary, bool, error) {
	query, args, err := sq.Select("value").
		From("cache_meta").
		Where(sq.Eq{"key": "fetched_at"}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build meta query: %w", err)
	}

	var fetchedAt string
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&fetchedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read fetch time: %w", err)
	}

	at, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil || time.Since(at) > ttl {
		return nil, false, nil
	}

	query, args, err = sq.Select("id", "filename", "uploaded_at", "comment_count").
		From("documents").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build select: %w", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	var docs []redline.DocumentSummary
	for rows.Next() {
		var doc redline.DocumentSummary
		var uploadedAt string
		if err := rows.Scan(&doc.ID, &doc.Filename, &uploadedAt, &doc.CommentCount); err != nil {
			return nil, false, fmt.Errorf("scan cached document: %w", err)
		}
		if uploadedAt != "" {
			if at, err := time.Parse(time.RFC3339, uploadedAt); err == nil {
				doc.UploadedAt = at
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate cache: %w", err)
	}

	return docs, true, nil
}

// listDocumentsWithCache serves the document listing from the cache
// when fresh, falling back to the backend and repopulating on a miss.
// Cache failures degrade to a direct fetch, never a command failure.
func listDocumentsWithCache(ctx context.Context, client *redline.Client, cache *docCache, forceRefresh bool, ttl time.Duration) ([]redline.DocumentSummary, error) {
	if cache != nil && !forceRefresh {
		docs, ok, err := cache.Get(ctx, ttl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not read document cache: %v\n", err)
		} else if ok {
			return docs, nil
		}
	}

	docs, err := client.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	if cache != nil {
		if err := cache.Put(ctx, docs); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not update document cache: %v\n", err)
		}
	}

	return docs, nil
}
