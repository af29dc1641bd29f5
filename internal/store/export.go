package store

import (
	"context"

	"github.com/coderecall/recall/internal/model"
)

// ExportAll returns every memory in the current project for a JSON dump.
func (s *MemoryStore) ExportAll(ctx context.Context) ([]model.Memory, error) {
	return s.meta.List(ctx, s.cfg.ProjectID, "", 100000)
}

// Import replays exported memories through Store. Ids are recomputed from
// content, so importing the same dump twice is idempotent; the scoped
// metadata keys (project_id, timestamp) are re-stamped for this project.
func (s *MemoryStore) Import(ctx context.Context, memories []model.Memory) (int, error) {
	imported := 0
	for _, m := range memories {
		if _, err := s.Store(ctx, m.Content, m.Metadata, m.MemoryType); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
