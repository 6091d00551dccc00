package embedding

import "context"

// Provider generates embeddings from text. It is the boundary to the
// external embedding model.
type Provider interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) (Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions.
	Dimensions() int
}

// BatchProvider is implemented by providers that can embed several texts in
// one request. The result has one embedding per input, in input order.
type BatchProvider interface {
	Provider
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
}
