// Package index defines the embedding index capability and its chromem
// implementation. Any backend that can upsert text under a key and return
// nearest neighbors for a query, scoped by key/value filters, satisfies it.
package index

import "context"

// Result is one similarity-search hit. Similarity is clamped to [0, 1],
// higher is closer.
type Result struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float64
}

// Index is the similarity-search backend contract. Upsert with an existing
// id replaces the stored text and metadata. Query returns results ordered
// by descending similarity; tie order is unspecified.
type Index interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]string) error
	Query(ctx context.Context, text string, k int, where map[string]string) ([]Result, error)
	Delete(ctx context.Context, ids ...string) error
	DeleteWhere(ctx context.Context, where map[string]string) error
	Count() int
	Close() error
}
