package memory

import (
	"context"
	"hash/fnv"
	"math"

	chromem "github.com/philippgille/chromem-go"
)

// DefaultEmbeddingDim is the dimension of the hashed embedding space.
const DefaultEmbeddingDim = 256

// NewHashedEmbedding returns a deterministic, offline chromem.EmbeddingFunc:
// a hashed bag-of-words projection, L2-normalized. It carries no semantics
// beyond term overlap but is fully reproducible, which keeps retrieval
// ordering stable across runs and avoids a network dependency in the default
// configuration. Substitute a real provider embedding for production-quality
// recall.
func NewHashedEmbedding(dim int) chromem.EmbeddingFunc {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dim)
		for term := range termSet(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(term))
			vec[h.Sum32()%uint32(dim)]++
		}
		// Weigh repeated-term buckets down a little so one dominant bucket
		// does not mask everything else.
		var norm float64
		for i, v := range vec {
			if v > 0 {
				vec[i] = 1 + float32(math.Log(float64(v)))
			}
			norm += float64(vec[i]) * float64(vec[i])
		}
		if norm == 0 {
			vec[0] = 1
			return vec, nil
		}
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
		return vec, nil
	}
}
