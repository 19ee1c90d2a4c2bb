package embedding

import (
	"context"
	"fmt"
)

// StaticEngine is a deterministic Engine for tests. Each known text
// maps to a fixed vector; asking for an unknown text is an error so
// tests fail loudly rather than silently match.
type StaticEngine struct {
	vectors map[string][]float32
	dims    int

	// BatchCalls counts EmbedBatch invocations, letting tests assert
	// that embedding happens in a single batched call.
	BatchCalls int
}

// NewStaticEngine creates a stub engine with fixed text-to-vector
// assignments. All vectors must share one dimensionality.
func NewStaticEngine(dims int, vectors map[string][]float32) *StaticEngine {
	return &StaticEngine{vectors: vectors, dims: dims}
}

// Embed returns the fixed vector for a text.
func (e *StaticEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns the fixed vectors in input order.
func (e *StaticEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.BatchCalls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := e.vectors[text]
		if !ok {
			return nil, fmt.Errorf("static engine has no vector for %q", text)
		}
		if len(vec) != e.dims {
			return nil, fmt.Errorf("vector for %q has %d dims, engine declares %d", text, len(vec), e.dims)
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the declared dimensionality.
func (e *StaticEngine) Dimensions() int { return e.dims }

// Name returns the engine name.
func (e *StaticEngine) Name() string { return "static" }
