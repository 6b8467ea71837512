// Package cache is a content-addressed build-artifact cache: a hash of
// (source, target) maps to the shared-library path pkg/build already
// produced for it, so cmd/indexc can skip a rebuild on an unchanged
// component.
//
// Grounded on other_examples/.../mvp-joe-canopy__internal-store-store.go.go
// (sql.Open("sqlite3", ...), WAL pragma, schema-creation-on-open,
// parameterized queries) — the teacher itself has no persistence layer,
// so this package is new domain-stack wiring rather than an adaptation of
// an existing teacher file.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

// Cache is the SQLite-backed artifact cache.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) a cache database at dbPath.
func Open(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, errors.Wrap(err, "cache: open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: ping database")
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: migrate")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

const schemaDDL = `
CREATE TABLE IF NOT EXISTS artifacts (
  key          TEXT PRIMARY KEY,
  source_hash  TEXT NOT NULL,
  target       TEXT NOT NULL,
  lib_path     TEXT NOT NULL,
  created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Key hashes a component's source text and target name into the cache key
// that identifies its compiled artifact.
func Key(source, target string) string {
	sum := sha256.Sum256([]byte(target + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the shared-library path cached for key, or ok=false on a
// cache miss.
func (c *Cache) Lookup(key string) (path string, ok bool, err error) {
	row := c.db.QueryRow(`SELECT lib_path FROM artifacts WHERE key = ?`, key)
	if err := row.Scan(&path); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "cache: lookup %q", key)
	}
	return path, true, nil
}

// Store records libPath as the artifact built for key.
func (c *Cache) Store(key, sourceHash, target, libPath string) error {
	_, err := c.db.Exec(
		`INSERT INTO artifacts (key, source_hash, target, lib_path) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET source_hash = excluded.source_hash, target = excluded.target, lib_path = excluded.lib_path`,
		key, sourceHash, target, libPath)
	return errors.Wrapf(err, "cache: store %q", key)
}
