package store

import (
	"context"
	"errors"
	"testing"
)

func TestLedgerOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ledger := NewLedger(s)

	sess, err := ledger.Open(ctx, "sess-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.SessionID != "sess-1" || sess.ProjectID != "proj" {
		t.Errorf("unexpected session row: %+v", sess)
	}
	if sess.EndTime != nil {
		t.Error("expected open session to have no end time")
	}

	again, err := ledger.Open(ctx, "sess-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !again.StartTime.Equal(sess.StartTime) {
		t.Error("expected reopen to keep the original start time")
	}
}

func TestLedgerOpenRejectsEmptyID(t *testing.T) {
	s, _ := newTestStore(t)
	ledger := NewLedger(s)

	if _, err := ledger.Open(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLedgerClose(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ledger := NewLedger(s)

	ledger.Open(ctx, "sess-1")
	if err := ledger.Close(ctx, "sess-1", "did things", 3); err != nil {
		t.Fatalf("close: %v", err)
	}

	sess, _ := ledger.Get(ctx, "sess-1")
	if sess.EndTime == nil {
		t.Error("expected end time set")
	}
	if sess.Summary != "did things" {
		t.Errorf("expected summary round-trip, got %q", sess.Summary)
	}
	if sess.MemoryCount != 3 {
		t.Errorf("expected memory count 3, got %d", sess.MemoryCount)
	}
}

func TestLedgerCloseUnknownSessionUpserts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ledger := NewLedger(s)

	if err := ledger.Close(ctx, "never-opened", "late summary", 0); err != nil {
		t.Fatalf("close: %v", err)
	}

	sess, err := ledger.Get(ctx, "never-opened")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.EndTime == nil || sess.Summary != "late summary" {
		t.Errorf("expected upserted closed session, got %+v", sess)
	}
}

func TestLedgerGetNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ledger := NewLedger(s)

	if _, err := ledger.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerProjections(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	ledger := NewLedger(s)

	session := map[string]any{"session_id": "sess-1"}
	stored := []struct {
		content string
		meta    map[string]any
		typ     string
	}{
		{"edited main.go", map[string]any{"session_id": "sess-1", "tool": "Edit", "file_path": "main.go"}, "general"},
		{"edited main.go again", map[string]any{"session_id": "sess-1", "tool": "Edit", "file_path": "main.go"}, "general"},
		{"read config.go", map[string]any{"session_id": "sess-1", "tool": "Read", "file_path": "config.go"}, "general"},
		{"fixed nil deref", map[string]any{"session_id": "sess-1", "error_type": "nil_pointer"}, "error_solution"},
		{"fixed another nil deref", map[string]any{"session_id": "sess-1", "error_type": "nil_pointer"}, "error_solution"},
		{"fixed something vague", session, "error_solution"},
		{"other session memory", map[string]any{"session_id": "sess-2", "tool": "Bash"}, "general"},
	}
	for _, row := range stored {
		if _, err := s.Store(ctx, row.content, row.meta, row.typ); err != nil {
			t.Fatalf("store %q: %v", row.content, err)
		}
	}

	memories, err := ledger.Memories(ctx, "sess-1")
	if err != nil {
		t.Fatalf("memories: %v", err)
	}
	if len(memories) != 6 {
		t.Errorf("expected 6 memories in session, got %d", len(memories))
	}

	tools, _ := ledger.ToolsUsed(ctx, "sess-1")
	if tools["Edit"] != 2 || tools["Read"] != 1 {
		t.Errorf("unexpected tool histogram: %v", tools)
	}
	if _, leaked := tools["Bash"]; leaked {
		t.Error("tool histogram leaked across sessions")
	}

	files, _ := ledger.FilesTouched(ctx, "sess-1")
	if len(files) != 2 || files[0] != "config.go" || files[1] != "main.go" {
		t.Errorf("expected sorted distinct files, got %v", files)
	}

	errTypes, _ := ledger.ErrorTypes(ctx, "sess-1")
	if len(errTypes) != 2 || errTypes[0] != "nil_pointer" || errTypes[1] != "unknown" {
		t.Errorf("expected [nil_pointer unknown], got %v", errTypes)
	}
}
