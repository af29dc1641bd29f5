package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/coderecall/recall/internal/embedding"
)

// ChromemIndex stores embeddings in chromem-go, a pure-Go embedded vector
// database persisted under the project's index directory. One collection
// per project keeps two projects from ever sharing storage.
type ChromemIndex struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromem opens (or creates) the persistent index for a project.
func NewChromem(path, projectID string, embedder embedding.Embedder) (*ChromemIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}

	col, err := db.GetOrCreateCollection(
		"memories_"+projectID,
		map[string]string{"project_id": projectID},
		embedFunc,
	)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	return &ChromemIndex{db: db, col: col}, nil
}

func (x *ChromemIndex) Upsert(ctx context.Context, id, text string, metadata map[string]string) error {
	err := x.col.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("index upsert: %w", err)
	}
	return nil
}

func (x *ChromemIndex) Query(ctx context.Context, text string, k int, where map[string]string) ([]Result, error) {
	// chromem rejects nResults larger than the collection, and the
	// where-filter shrinks the candidate set further.
	n := x.col.Count()
	if n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}

	// The where-filter can shrink the candidate set below k, which some
	// chromem versions reject outright. Back off until the query fits.
	var raw []chromem.Result
	var err error
	for ; k >= 1; k-- {
		raw, err = x.col.Query(ctx, text, k, where, nil)
		if err == nil {
			break
		}
		if !strings.Contains(err.Error(), "nResults") && !strings.Contains(err.Error(), "number of documents") {
			return nil, fmt.Errorf("index query: %w", err)
		}
		if k == 1 {
			return nil, nil
		}
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		results = append(results, Result{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: clamp01(float64(r.Similarity)),
		})
	}
	return results, nil
}

func (x *ChromemIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	return nil
}

func (x *ChromemIndex) DeleteWhere(ctx context.Context, where map[string]string) error {
	if err := x.col.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("index delete where: %w", err)
	}
	return nil
}

func (x *ChromemIndex) Count() int {
	return x.col.Count()
}

func (x *ChromemIndex) Close() error {
	// chromem persists on every write; nothing held open.
	return nil
}

// clamp01 bounds a backend similarity to [0, 1]. Cosine similarity can go
// negative for anti-correlated vectors; those are "not similar" here.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
