// Package embed talks to an OpenAI-compatible embedding service. One batch
// request in, one vector per input text out, with retries for transient
// failures and a process-wide concurrency cap.
package embed

import (
	"context"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The result has
	// exactly one vector per input, in input order, or the call fails as
	// a whole.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Warmup issues one tiny embedding request to surface credential and
	// connectivity problems before the pipeline starts.
	Warmup(ctx context.Context) error

	// Dimensions returns the configured embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases HTTP resources.
	Close() error
}
