package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/coderecall/recall/internal/model"
)

// Ledger is a thin aggregation view over the metadata store keyed by
// session id. Sessions are created lazily, mutated once at close, and
// never deleted automatically.
type Ledger struct {
	meta      *MetaStore
	projectID string
}

// NewLedger returns the session ledger for the store's project.
func NewLedger(s *MemoryStore) *Ledger {
	return &Ledger{meta: s.meta, projectID: s.cfg.ProjectID}
}

// Open returns the session row, creating it with start_time = now if this
// is the first time the id has been seen.
func (l *Ledger) Open(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}

	if sess, err := l.Get(ctx, sessionID); err == nil {
		return sess, nil
	}

	now := time.Now().UTC()
	_, err := l.meta.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (session_id, project_id, start_time) VALUES (?, ?, ?)`,
		sessionID, l.projectID, now.Format(time.RFC3339))
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return l.Get(ctx, sessionID)
}

// Close records end_time, summary, and memory_count for a session.
// Closing a session that was never opened upserts it with start_time = now.
func (l *Ledger) Close(ctx context.Context, sessionID, summary string, memoryCount int) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidInput)
	}
	if _, err := l.Open(ctx, sessionID); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := l.meta.db.ExecContext(ctx,
		`UPDATE sessions SET end_time = ?, summary = ?, memory_count = ? WHERE session_id = ?`,
		now, summary, memoryCount, sessionID)
	return mapSQLiteErr(err)
}

// Get returns one session row, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	row := l.meta.db.QueryRowContext(ctx,
		`SELECT session_id, project_id, start_time, end_time, summary, memory_count
		 FROM sessions WHERE session_id = ? AND project_id = ?`, sessionID, l.projectID)

	var sess model.Session
	var startTime string
	var endTime, summary sql.NullString
	err := row.Scan(&sess.SessionID, &sess.ProjectID, &startTime, &endTime, &summary, &sess.MemoryCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, mapSQLiteErr(err)
	}

	sess.StartTime, _ = time.Parse(time.RFC3339, startTime)
	if endTime.Valid {
		t, _ := time.Parse(time.RFC3339, endTime.String)
		sess.EndTime = &t
	}
	if summary.Valid {
		sess.Summary = summary.String
	}
	return &sess, nil
}

// Memories returns every memory recorded under a session, newest-first.
func (l *Ledger) Memories(ctx context.Context, sessionID string) ([]model.Memory, error) {
	rows, err := l.meta.db.QueryContext(ctx,
		`SELECT id, project_id, memory_type, content, metadata, timestamp, access_count, last_accessed, session_id
		 FROM memories WHERE project_id = ? AND session_id = ? ORDER BY timestamp DESC`,
		l.projectID, sessionID)
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

// ToolsUsed is a histogram of the "tool" metadata key across a session's
// memories. A read-only projection, not a stored field.
func (l *Ledger) ToolsUsed(ctx context.Context, sessionID string) (map[string]int, error) {
	memories, err := l.Memories(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	hist := map[string]int{}
	for _, m := range memories {
		if tool, ok := m.Metadata["tool"].(string); ok && tool != "" {
			hist[tool]++
		}
	}
	return hist, nil
}

// FilesTouched lists the distinct "file_path" metadata values across a
// session's memories, sorted.
func (l *Ledger) FilesTouched(ctx context.Context, sessionID string) ([]string, error) {
	memories, err := l.Memories(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var files []string
	for _, m := range memories {
		if path, ok := m.Metadata["file_path"].(string); ok && path != "" && !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ErrorTypes lists the distinct "error_type" metadata values across a
// session's error_solution memories, sorted.
func (l *Ledger) ErrorTypes(ctx context.Context, sessionID string) ([]string, error) {
	memories, err := l.Memories(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var types []string
	for _, m := range memories {
		if m.MemoryType != model.TypeErrorSolution {
			continue
		}
		errType, ok := m.Metadata["error_type"].(string)
		if !ok || errType == "" {
			errType = "unknown"
		}
		if !seen[errType] {
			seen[errType] = true
			types = append(types, errType)
		}
	}
	sort.Strings(types)
	return types, nil
}
