// Package retention scores memory importance and selects a bounded top-K
// subset to preserve ahead of a context-compaction event.
package retention

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coderecall/recall/internal/config"
	"github.com/coderecall/recall/internal/model"
	"github.com/coderecall/recall/internal/store"
)

// recentWindow is how many recent memories are considered per sweep.
const recentWindow = 500

// Candidate is a memory annotated with its importance score.
type Candidate struct {
	model.Memory
	Score float64 `json:"importance_score"`
}

// Report describes the outcome of one preservation sweep.
type Report struct {
	PreservedCount int      `json:"preserved_count"`
	PreservedIDs   []string `json:"preserved_ids"`
	SummaryID      string   `json:"summary_id"`
}

// Engine reads the memory store, scores importance, and marks survivors.
type Engine struct {
	store *store.MemoryStore
	cfg   *config.Config
	now   func() time.Time
}

// New builds a retention engine over a memory store.
func New(s *store.MemoryStore) *Engine {
	return &Engine{store: s, cfg: s.Config(), now: time.Now}
}

// Score computes the importance of a memory in [0, 1]. The bonuses and
// their boundaries are tuning values carried over from the original
// policy; tests depend on them exactly.
func (e *Engine) Score(m model.Memory) float64 {
	score := e.cfg.TypeWeight(m.MemoryType)

	switch {
	case m.AccessCount > 5:
		score += 0.3
	case m.AccessCount > 2:
		score += 0.2
	case m.AccessCount > 0:
		score += 0.1
	}

	if len(m.Content) > 200 {
		score += 0.1
	}

	age := e.now().Sub(m.Timestamp)
	switch {
	case age < time.Hour:
		score += 0.2
	case age < 6*time.Hour:
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// SelectForPreservation scores the recent window and returns the top-K
// candidates above the cutoff, sorted by descending score. The sort is
// stable: ties keep their original (newest-first) order.
func (e *Engine) SelectForPreservation(ctx context.Context) ([]Candidate, error) {
	memories, err := e.store.List(ctx, "", recentWindow)
	if err != nil {
		return nil, err
	}

	cutoff := e.now().Add(-e.cfg.PreserveWindow)

	var candidates []Candidate
	for _, m := range memories {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		score := e.Score(m)
		if score <= e.cfg.ScoreCutoff {
			continue
		}
		candidates = append(candidates, Candidate{Memory: m, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > e.cfg.PreserveLimit {
		candidates = candidates[:e.cfg.PreserveLimit]
	}
	return candidates, nil
}

// Preserve runs one sweep: selects candidates, stores a human-readable
// preservation summary as a memory, and bumps the access count of every
// preserved memory so an LRU-style sweep is less likely to reclaim them.
func (e *Engine) Preserve(ctx context.Context, reason string, extra map[string]any) (*Report, error) {
	candidates, err := e.SelectForPreservation(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	metadata := map[string]any{
		"hook":              "precompact",
		"compaction_reason": reason,
		"preserved_count":   len(candidates),
		"preserved_ids":     ids,
	}
	for k, v := range extra {
		metadata[k] = v
	}

	summaryID, err := e.store.Store(ctx, Summary(candidates), metadata, model.TypePreservation)
	if err != nil {
		return nil, err
	}

	if err := e.store.IncrementAccess(ctx, ids); err != nil {
		return nil, err
	}

	return &Report{
		PreservedCount: len(candidates),
		PreservedIDs:   ids,
		SummaryID:      summaryID,
	}, nil
}

// Summary renders the human-readable preservation artifact: counts per
// type with score-annotated content previews.
func Summary(candidates []Candidate) string {
	var b strings.Builder
	b.WriteString("Pre-Compaction Memory Preservation\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Preserved %d important memories\n\n", len(candidates))

	byType := map[string][]Candidate{}
	var typeOrder []string
	for _, c := range candidates {
		memoryType := c.MemoryType
		if memoryType == "" {
			memoryType = model.TypeGeneral
		}
		if _, seen := byType[memoryType]; !seen {
			typeOrder = append(typeOrder, memoryType)
		}
		byType[memoryType] = append(byType[memoryType], c)
	}

	for _, memoryType := range typeOrder {
		group := byType[memoryType]
		fmt.Fprintf(&b, "\n%s (%d):\n", titleCase(memoryType), len(group))

		limit := len(group)
		if limit > 5 {
			limit = 5
		}
		for _, c := range group[:limit] {
			preview := c.Content
			if len(preview) > 100 {
				preview = preview[:100]
			}
			preview = strings.ReplaceAll(preview, "\n", " ")
			fmt.Fprintf(&b, "  • [%.2f] %s...\n", c.Score, preview)
		}
	}

	return b.String()
}

// titleCase turns "error_solution" into "Error Solution".
func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
