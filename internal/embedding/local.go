package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultLocalDimension is the vector width of the local embedder.
const DefaultLocalDimension = 128

// LocalEmbedder produces deterministic embeddings by hashing tokens into a
// fixed-width bag-of-words vector. Similarity between its vectors tracks
// token overlap, which keeps retrieval ranking functional in tests and in
// deployments without an embedding service. It is not a semantic model.
type LocalEmbedder struct {
	dim int
}

var _ Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder returns a local embedder with the given dimension;
// values below 8 fall back to DefaultLocalDimension.
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim < 8 {
		dim = DefaultLocalDimension
	}
	return &LocalEmbedder{dim: dim}
}

// Embed hashes each lower-cased token into a bucket and L2-normalizes the
// result. Identical text always yields identical vectors.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// GetModel identifies the hashing scheme.
func (e *LocalEmbedder) GetModel() string {
	return "local-hash-v1"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}
