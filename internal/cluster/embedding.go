// Package cluster implements incremental face clustering on top of an
// embedding store and a per-cluster image directory layout.
package cluster

import "math"

// Embedding is a face descriptor produced by the embedding service.
type Embedding []float64

// Distance returns the Euclidean distance between two embeddings.
// Embeddings of different length are infinitely far apart.
func Distance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Clone returns a copy that does not share the backing array.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}
