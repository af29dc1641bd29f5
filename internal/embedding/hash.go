package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder generates deterministic unit vectors from a text hash.
// Identical text always embeds identically, so similarity search still
// behaves sensibly for exact and near-duplicate content, and tests get
// reproducible rankings without a model server.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash-based embedder. dims <= 0 selects the
// default of 384 (matching all-MiniLM-L6-v2).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make(Vector, e.dims)
	for i := range vec {
		// LCG seeded by the text hash
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

func (e *HashEmbedder) Dims() int { return e.dims }

func normalize(vec Vector) Vector {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	out := make(Vector, len(vec))
	for i, v := range vec {
		out[i] = v / n
	}
	return out
}
