// Package scratch is a small embedded key-value store for cross-process
// hook state (suggestion throttling, last-seen markers). It replaces the
// ad-hoc lock-file approach: SQLite's locking with a short busy timeout
// gives bounded waits, and a contended caller fails fast instead of
// stalling the interactive session.
package scratch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrBusy marks lock contention on the scratch store.
var ErrBusy = errors.New("scratch busy")

// Store is the scratch KV.
type Store struct {
	db *sql.DB
}

// Open opens or creates the scratch database at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(500)")
	if err != nil {
		return nil, fmt.Errorf("open scratch db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS scratch (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate scratch db: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the value for a key and when it was last written.
// A missing key returns ok = false, not an error.
func (s *Store) Get(ctx context.Context, key string) (value string, updatedAt time.Time, ok bool, err error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT value, updated_at FROM scratch WHERE key = ?`, key)
	if err := row.Scan(&value, &raw); err != nil {
		if err == sql.ErrNoRows {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, mapErr(err)
	}
	updatedAt, _ = time.Parse(time.RFC3339, raw)
	return value, updatedAt, true, nil
}

// Put writes a key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scratch (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	return mapErr(err)
}

// Delete removes a key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scratch WHERE key = ?`, key)
	return mapErr(err)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return errors.Join(ErrBusy, err)
	}
	return err
}
