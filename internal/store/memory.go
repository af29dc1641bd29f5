// Package store implements the hybrid memory store: an embedding index
// for similarity search coupled with a relational record of metadata,
// access statistics, and sessions.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coderecall/recall/internal/config"
	"github.com/coderecall/recall/internal/embedding"
	"github.com/coderecall/recall/internal/index"
	"github.com/coderecall/recall/internal/model"
)

// MemoryStore orchestrates the embedding index and the metadata store and
// keeps them consistent. There is no two-phase commit between the two
// backends: ids are deterministic and both writes are idempotent upserts,
// so a crash between the writes is repaired by replaying the same store
// call.
type MemoryStore struct {
	cfg  *config.Config
	meta *MetaStore
	idx  index.Index
}

// Open builds the full store for a project: embedder, chromem index, and
// SQLite metadata store, all namespaced by the project id.
func Open(cfg *config.Config) (*MemoryStore, error) {
	embedder, err := embedding.New(cfg)
	if err != nil {
		return nil, err
	}

	idx, err := index.NewChromem(cfg.IndexPath(), cfg.ProjectID, embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	meta, err := NewMetaStore(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	return New(cfg, meta, idx), nil
}

// New assembles a store from explicit backends. Tests use this to inject
// a fake index.
func New(cfg *config.Config, meta *MetaStore, idx index.Index) *MemoryStore {
	return &MemoryStore{cfg: cfg, meta: meta, idx: idx}
}

// GenerateID derives the content-addressed memory id. Identical
// (project, type, content) always yields the same id, which is what makes
// re-storing an idempotent upsert instead of a duplicate insert.
func GenerateID(projectID, memoryType, content string) string {
	sum := sha256.Sum256([]byte(projectID + ":" + memoryType + ":" + content))
	return hex.EncodeToString(sum[:])[:16]
}

// Store writes a memory to both backends and returns its id. The index is
// written first; a metadata failure after that surfaces as
// ErrStoreInconsistency so the caller knows a retry is needed (and safe).
func (s *MemoryStore) Store(ctx context.Context, content string, metadata map[string]any, memoryType string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content", ErrInvalidInput)
	}
	if memoryType == "" {
		memoryType = model.TypeGeneral
	}

	id := GenerateID(s.cfg.ProjectID, memoryType, content)
	now := time.Now().UTC()

	// Enrich the metadata bag. The scoped keys are store-computed and win
	// over caller-supplied values; timestamp in particular must not come
	// from the caller's clock.
	full := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		full[k] = v
	}
	full["project_id"] = s.cfg.ProjectID
	full["memory_type"] = memoryType
	full["timestamp"] = now.Format(time.RFC3339)

	sessionID, _ := full["session_id"].(string)

	if err := s.idx.Upsert(ctx, id, content, stringifyMetadata(full)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	mem := &model.Memory{
		ID:         id,
		ProjectID:  s.cfg.ProjectID,
		MemoryType: memoryType,
		Content:    content,
		Metadata:   full,
		Timestamp:  now,
		SessionID:  sessionID,
	}
	if err := s.meta.InsertOrReplace(ctx, mem); err != nil {
		// The index is now ahead of the metadata table. The id is
		// deterministic, so a retried Store heals both sides.
		return "", fmt.Errorf("%w: index written, metadata failed: %v", ErrStoreInconsistency, err)
	}

	if err := s.meta.UpdateStats(ctx, s.cfg.ProjectID, s.configJSON()); err != nil {
		return "", err
	}
	return id, nil
}

// Search returns memories similar to the query, scoped to the project and
// optionally to a set of memory types. Results below the similarity
// threshold are suppressed. Every returned hit counts as one access.
// An empty query or an empty result set is success, never an error.
func (s *MemoryStore) Search(ctx context.Context, query string, memoryTypes []string, limit int) ([]model.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}

	where := map[string]string{"project_id": s.cfg.ProjectID}
	k := limit
	if len(memoryTypes) == 1 {
		where["memory_type"] = memoryTypes[0]
	} else if len(memoryTypes) > 1 {
		// The index filter is exact-match only, so over-fetch and filter
		// by type membership here.
		k = limit * 4
	}

	results, err := s.idx.Query(ctx, query, k, where)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var typeSet map[string]bool
	if len(memoryTypes) > 1 {
		typeSet = make(map[string]bool, len(memoryTypes))
		for _, t := range memoryTypes {
			typeSet[t] = true
		}
	}

	var hits []model.SearchHit
	var ids []string
	for _, r := range results {
		if typeSet != nil && !typeSet[r.Metadata["memory_type"]] {
			continue
		}
		if r.Similarity < s.cfg.SimilarityThreshold {
			continue
		}
		hits = append(hits, model.SearchHit{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   anyMetadata(r.Metadata),
			Similarity: r.Similarity,
		})
		ids = append(ids, r.ID)
		if len(hits) >= limit {
			break
		}
	}

	if err := s.meta.IncrementAccess(ctx, ids); err != nil {
		return nil, err
	}
	return hits, nil
}

// Get returns one memory by id and counts the read as an access.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Memory, error) {
	m, err := s.meta.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.ProjectID != s.cfg.ProjectID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.meta.IncrementAccess(ctx, []string{id}); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns the project's memories newest-first without touching
// access counts.
func (s *MemoryStore) List(ctx context.Context, memoryType string, limit int) ([]model.Memory, error) {
	return s.meta.List(ctx, s.cfg.ProjectID, memoryType, limit)
}

// Delete removes a memory from both backends. The index delete is issued
// even when the metadata row is already gone (and vice versa) so a
// half-deleted memory cannot leak.
func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.idx.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	deleted, err := s.meta.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		if err := s.meta.UpdateStats(ctx, s.cfg.ProjectID, s.configJSON()); err != nil {
			return true, err
		}
	}
	return deleted, nil
}

// ClearProject deletes every memory scoped to the current project from
// both backends and returns how many there were.
func (s *MemoryStore) ClearProject(ctx context.Context) (int, error) {
	count, err := s.meta.Count(ctx, s.cfg.ProjectID, "")
	if err != nil {
		return 0, err
	}

	if err := s.idx.DeleteWhere(ctx, map[string]string{"project_id": s.cfg.ProjectID}); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if _, err := s.meta.DeleteAll(ctx, s.cfg.ProjectID); err != nil {
		return 0, fmt.Errorf("%w: index cleared, metadata failed: %v", ErrStoreInconsistency, err)
	}
	if err := s.meta.UpdateStats(ctx, s.cfg.ProjectID, s.configJSON()); err != nil {
		return count, err
	}
	return count, nil
}

// Stats aggregates the project's memory counts by type.
func (s *MemoryStore) Stats(ctx context.Context) (*model.Stats, error) {
	return s.meta.Stats(ctx, s.cfg.ProjectID)
}

// IncrementAccess bumps access counts for a batch of ids. The retention
// engine uses this to make preserved memories look hot to any LRU-style
// reclamation.
func (s *MemoryStore) IncrementAccess(ctx context.Context, ids []string) error {
	return s.meta.IncrementAccess(ctx, ids)
}

// Meta exposes the underlying metadata store for the session ledger.
func (s *MemoryStore) Meta() *MetaStore { return s.meta }

// Config returns the store's configuration.
func (s *MemoryStore) Config() *config.Config { return s.cfg }

func (s *MemoryStore) Close() error {
	if err := s.idx.Close(); err != nil {
		return err
	}
	return s.meta.Close()
}

func (s *MemoryStore) configJSON() string {
	b, _ := json.Marshal(map[string]any{
		"project_id":           s.cfg.ProjectID,
		"project_path":         s.cfg.ProjectPath,
		"max_results":          s.cfg.MaxResults,
		"similarity_threshold": s.cfg.SimilarityThreshold,
	})
	return string(b)
}

// stringifyMetadata flattens the open metadata bag into the string map
// the index requires. Non-string values are stored as JSON.
func stringifyMetadata(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		if b, err := json.Marshal(v); err == nil {
			out[k] = string(b)
		}
	}
	return out
}

func anyMetadata(meta map[string]string) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
