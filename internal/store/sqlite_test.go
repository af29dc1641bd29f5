package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/coderecall/recall/internal/model"
)

func newTestMeta(t *testing.T) *MetaStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewMetaStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create meta store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMemory(id, projectID, memoryType, content string) *model.Memory {
	return &model.Memory{
		ID:         id,
		ProjectID:  projectID,
		MemoryType: memoryType,
		Content:    content,
		Metadata:   map[string]any{"project_id": projectID, "memory_type": memoryType},
		Timestamp:  time.Now().UTC(),
	}
}

func TestMetaInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestMeta(t)

	m := testMemory("abc123", "proj", "error_solution", "nil pointer fix")
	if err := s.InsertOrReplace(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "nil pointer fix" {
		t.Errorf("expected content round-trip, got %q", got.Content)
	}
	if got.MemoryType != "error_solution" {
		t.Errorf("expected memory type round-trip, got %q", got.MemoryType)
	}
	if got.AccessCount != 0 {
		t.Errorf("expected access_count 0, got %d", got.AccessCount)
	}
}

func TestMetaGetNotFound(t *testing.T) {
	s := newTestMeta(t)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMetaReplaceResetsAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestMeta(t)

	m := testMemory("id1", "proj", "general", "content")
	s.InsertOrReplace(ctx, m)
	s.IncrementAccess(ctx, []string{"id1"})

	// Re-storing the same id replaces the row wholesale.
	s.InsertOrReplace(ctx, m)

	got, _ := s.Get(ctx, "id1")
	if got.AccessCount != 0 {
		t.Errorf("expected access_count reset on replace, got %d", got.AccessCount)
	}
}

func TestMetaListFilteredAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestMeta(t)

	a := testMemory("a", "proj", "code_pattern", "oldest")
	a.Timestamp = time.Now().UTC().Add(-2 * time.Hour)
	b := testMemory("b", "proj", "error_solution", "middle")
	b.Timestamp = time.Now().UTC().Add(-1 * time.Hour)
	c := testMemory("c", "proj", "code_pattern", "newest")

	for _, m := range []*model.Memory{a, b, c} {
		if err := s.InsertOrReplace(ctx, m); err != nil {
			t.Fatalf("insert %s: %v", m.ID, err)
		}
	}

	all, err := s.List(ctx, "proj", "", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("expected newest-first order, got %s..%s", all[0].ID, all[2].ID)
	}

	patterns, _ := s.List(ctx, "proj", "code_pattern", 50)
	if len(patterns) != 2 {
		t.Errorf("expected 2 code_pattern, got %d", len(patterns))
	}

	limited, _ := s.List(ctx, "proj", "", 1)
	if len(limited) != 1 {
		t.Errorf("expected limit 1 respected, got %d", len(limited))
	}
}

func TestMetaCount(t *testing.T) {
	ctx := context.Background()
	s := newTestMeta(t)

	s.InsertOrReplace(ctx, testMemory("a", "proj", "code_pattern", "x"))
	s.InsertOrReplace(ctx, testMemory("b", "proj", "error_solution", "y"))
	s.InsertOrReplace(ctx, testMemory("c", "other", "code_pattern", "z"))

	n, _ := s.Count(ctx, "proj", "")
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	n, _ = s.Count(ctx, "proj", "code_pattern")
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
}

func TestMetaIncrementAccessBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestMeta(t)

	s.InsertOrReplace(ctx, testMemory("a", "proj", "general", "x"))
	s.InsertOrReplace(ctx, testMemory("b", "proj", "general", "y"))

	if err := s.IncrementAccess(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.IncrementAccess(ctx, []string{"a"}); err != nil {
		t.Fatalf("increment: %v", err)
	}

	a, _ := s.Get(ctx, "a")
	b, _ := s.Get(ctx, "b")
	if a.AccessCount != 2 {
		t.Errorf("expected a access_count 2, got %d", a.AccessCount)
	}
	if b.AccessCount != 1 {
		t.Errorf("expected b access_count 1, got %d", b.AccessCount)
	}
	if a.LastAccessed == nil {
		t.Error("expected last_accessed set")
	}

	// Empty batch is a no-op, not an error.
	if err := s.IncrementAccess(ctx, nil); err != nil {
		t.Errorf("empty batch: %v", err)
	}
}

func TestMetaDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := newTestMeta(t)

	s.InsertOrReplace(ctx, testMemory("a", "proj", "general", "x"))
	s.InsertOrReplace(ctx, testMemory("b", "proj", "general", "y"))
	s.InsertOrReplace(ctx, testMemory("c", "other", "general", "z"))

	n, err := s.DeleteAll(ctx, "proj")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	// The other project is untouched.
	if _, err := s.Get(ctx, "c"); err != nil {
		t.Errorf("expected other project intact: %v", err)
	}
}

func TestMetaStats(t *testing.T) {
	ctx := context.Background()
	s := newTestMeta(t)

	s.InsertOrReplace(ctx, testMemory("a", "proj", "code_pattern", "x"))
	s.InsertOrReplace(ctx, testMemory("b", "proj", "code_pattern", "y"))
	s.InsertOrReplace(ctx, testMemory("c", "proj", "error_solution", "z"))
	s.IncrementAccess(ctx, []string{"a"})
	s.IncrementAccess(ctx, []string{"a"})

	stats, err := s.Stats(ctx, "proj")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.ByType["code_pattern"].Count != 2 {
		t.Errorf("expected 2 code_pattern, got %d", stats.ByType["code_pattern"].Count)
	}
	if got := stats.ByType["code_pattern"].AvgAccessCount; got != 1.0 {
		t.Errorf("expected avg access 1.0, got %f", got)
	}
}
