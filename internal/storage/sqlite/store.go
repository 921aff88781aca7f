// Package sqlite implements the echo store: entries, access log, semantic
// groups and search failures in a single WAL SQLite database with an FTS5
// index kept in sync by full rebuilds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/mod/semver"
)

// Store wraps the process-wide echo database. The tool server holds exactly
// one Store per DB_PATH and swaps it across reindex (close, rebuild, reopen).
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the echo database at path and brings the
// schema up to the current version. Every connection carries WAL journaling,
// a 5000 ms busy timeout and foreign-key enforcement via DSN pragmas.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", path, err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// UnderlyingDB exposes the raw handle for tests and maintenance commands.
func (s *Store) UnderlyingDB() *sql.DB {
	return s.db
}

// TrackBinaryVersion records the running binary version in echo_meta and
// warns on stderr when the database was last touched by a newer release.
// Invalid semver on either side (dev builds) skips the comparison.
func (s *Store) TrackBinaryVersion(ctx context.Context, version string) error {
	stored, err := s.GetMeta(ctx, metaBinaryVersion)
	if err != nil {
		return err
	}
	cur := "v" + strings.TrimPrefix(version, "v")
	prev := "v" + strings.TrimPrefix(stored, "v")
	if stored != "" && semver.IsValid(cur) && semver.IsValid(prev) && semver.Compare(prev, cur) > 0 {
		fmt.Fprintf(os.Stderr, "Warning: database %s was last written by echo-search %s, running %s\n",
			s.path, stored, version)
	}
	return s.SetMeta(ctx, metaBinaryVersion, version)
}
