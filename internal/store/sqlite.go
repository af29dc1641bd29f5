package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coderecall/recall/internal/model"
)

// MetaStore is the durable relational side of the memory system: one row
// per memory, one per session, plus a per-project stats row. Concurrency
// safety across short-lived processes comes from SQLite's own locking;
// the busy_timeout pragma bounds every lock wait so a contended caller
// fails with ErrBusy instead of hanging on a tool-call's critical path.
type MetaStore struct {
	db *sql.DB
}

// NewMetaStore opens or creates the metadata database at the given path.
func NewMetaStore(dbPath string) (*MetaStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(2000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrBackendUnavailable, err)
	}

	s := &MetaStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrBackendUnavailable, err)
	}
	return s, nil
}

func (s *MetaStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id            TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL,
		memory_type   TEXT NOT NULL,
		content       TEXT NOT NULL,
		metadata      TEXT NOT NULL,
		timestamp     TEXT NOT NULL,
		access_count  INTEGER NOT NULL DEFAULT 0,
		last_accessed TEXT,
		session_id    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_project_type ON memories(project_id, memory_type);
	CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id);

	CREATE TABLE IF NOT EXISTS memory_stats (
		project_id     TEXT PRIMARY KEY,
		total_memories INTEGER NOT NULL DEFAULT 0,
		last_updated   TEXT,
		config         TEXT
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id   TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL,
		start_time   TEXT NOT NULL,
		end_time     TEXT,
		summary      TEXT,
		memory_count INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertOrReplace writes a memory record. Identical ids overwrite: the
// id is content-addressed, so a replay stores equivalent content.
func (s *MetaStore) InsertOrReplace(ctx context.Context, m *model.Memory) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal metadata: %v", ErrInvalidInput, err)
	}

	var sessionID *string
	if m.SessionID != "" {
		sessionID = &m.SessionID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories
		 (id, project_id, memory_type, content, metadata, timestamp, access_count, last_accessed, session_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		m.ID, m.ProjectID, m.MemoryType, m.Content, string(metaJSON),
		m.Timestamp.UTC().Format(time.RFC3339), m.AccessCount, sessionID)
	if err != nil {
		return fmt.Errorf("insert memory: %w", mapSQLiteErr(err))
	}
	return nil
}

// Get returns a single memory record, or ErrNotFound.
func (s *MetaStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, memory_type, content, metadata, timestamp, access_count, last_accessed, session_id
		 FROM memories WHERE id = ?`, id)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return m, nil
}

// List returns a project's memories newest-first, optionally filtered by
// type. No access-count side effect: browsing is not access.
func (s *MetaStore) List(ctx context.Context, projectID, memoryType string, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, project_id, memory_type, content, metadata, timestamp, access_count, last_accessed, session_id
	          FROM memories WHERE project_id = ?`
	args := []any{projectID}
	if memoryType != "" {
		query += ` AND memory_type = ?`
		args = append(args, memoryType)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// Count returns the number of memories for a project, optionally by type.
func (s *MetaStore) Count(ctx context.Context, projectID, memoryType string) (int, error) {
	query := `SELECT COUNT(*) FROM memories WHERE project_id = ?`
	args := []any{projectID}
	if memoryType != "" {
		query += ` AND memory_type = ?`
		args = append(args, memoryType)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapSQLiteErr(err)
	}
	return n, nil
}

// Delete removes one memory row. Returns whether a row was deleted.
func (s *MetaStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, mapSQLiteErr(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteAll removes every memory row for a project. Returns the count.
func (s *MetaStore) DeleteAll(ctx context.Context, projectID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, mapSQLiteErr(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// IncrementAccess bumps access_count and last_accessed for a batch of
// ids in a single transaction: either every id in the batch is bumped or
// none is.
func (s *MetaStore) IncrementAccess(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id = ?`,
			now, id); err != nil {
			return fmt.Errorf("increment access: %w", mapSQLiteErr(err))
		}
	}
	return mapSQLiteErr(tx.Commit())
}

// UpdateStats recomputes the per-project stats row.
func (s *MetaStore) UpdateStats(ctx context.Context, projectID, configJSON string) error {
	count, err := s.Count(ctx, projectID, "")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_stats (project_id, total_memories, last_updated, config)
		 VALUES (?, ?, ?, ?)`,
		projectID, count, time.Now().UTC().Format(time.RFC3339), configJSON)
	return mapSQLiteErr(err)
}

// Stats aggregates per-type counts and average access counts.
func (s *MetaStore) Stats(ctx context.Context, projectID string) (*model.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*), AVG(access_count)
		 FROM memories WHERE project_id = ? GROUP BY memory_type`, projectID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	stats := &model.Stats{ProjectID: projectID, ByType: map[string]model.TypeStats{}}
	for rows.Next() {
		var memoryType string
		var ts model.TypeStats
		if err := rows.Scan(&memoryType, &ts.Count, &ts.AvgAccessCount); err != nil {
			return nil, err
		}
		stats.ByType[memoryType] = ts
		stats.Total += ts.Count
	}
	return stats, rows.Err()
}

func (s *MetaStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*model.Memory, error) {
	var m model.Memory
	var metaJSON, timestamp string
	var lastAccessed, sessionID sql.NullString

	err := row.Scan(&m.ID, &m.ProjectID, &m.MemoryType, &m.Content,
		&metaJSON, &timestamp, &m.AccessCount, &lastAccessed, &sessionID)
	if err != nil {
		return nil, err
	}

	m.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
	if lastAccessed.Valid {
		t, _ := time.Parse(time.RFC3339, lastAccessed.String)
		m.LastAccessed = &t
	}
	if sessionID.Valid {
		m.SessionID = sessionID.String
	}
	if metaJSON != "" {
		json.Unmarshal([]byte(metaJSON), &m.Metadata)
	}
	return &m, nil
}
