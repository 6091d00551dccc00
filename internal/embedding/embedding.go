// Package embedding turns document text into fixed-length vectors and stores
// them as the embeddings artifact of a run.
package embedding

// Embedding is the vector for one text.
type Embedding struct {
	Vector []float32
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}
