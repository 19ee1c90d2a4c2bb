// Package embedding provides vector embedding generation for the
// question deduplicator. The deduplicator depends only on the Engine
// interface; production uses the Google GenAI backend and tests use the
// deterministic static engine.
package embedding

import "context"

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}
