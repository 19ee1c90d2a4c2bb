// Package dedup clusters the agent-posed questions collected across one
// probe session by embedding similarity, surfacing questions the agent
// asked more than once in semantically equivalent forms.
//
// The clustering is a single greedy pass over the full pairwise cosine
// matrix: O(n^2) in the distinct question count. That is fine for one
// session's question volume and deliberately not a corpus-scale dedup.
package dedup

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"agentprobe/internal/embedding"
)

// DefaultThreshold is the cosine similarity at or above which two
// questions are treated as duplicates.
const DefaultThreshold = 0.87

// Cluster is a group of semantically equivalent questions. Only
// clusters with OccurrenceCount > 1 are surfaced.
type Cluster struct {
	RepresentativeQuestion string `json:"representative_question"`
	OccurrenceCount        int    `json:"occurrence_count"`
}

// Deduplicator clusters one session's question set.
type Deduplicator struct {
	engine    embedding.Engine
	threshold float64
	logger    *zap.Logger
}

// NewDeduplicator creates a deduplicator. A non-positive threshold
// falls back to DefaultThreshold.
func NewDeduplicator(engine embedding.Engine, threshold float64, logger *zap.Logger) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{
		engine:    engine,
		threshold: threshold,
		logger:    logger.Named("dedup"),
	}
}

// Deduplicate clusters the ordered question sequence and returns the
// duplicated clusters in creation order.
//
// The first question seeds cluster one with itself as representative.
// Each later question is compared against every existing cluster's
// representative (always the original seed text, never a recomputed
// centroid); the best match at or above the threshold absorbs it,
// otherwise it seeds a new cluster.
func (d *Deduplicator) Deduplicate(ctx context.Context, questions []string) ([]Cluster, error) {
	cleaned := make([]string, 0, len(questions))
	for _, q := range questions {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	vectors, err := d.engine.EmbedBatch(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("embed questions: %w", err)
	}
	if len(vectors) != len(cleaned) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(cleaned), len(vectors))
	}

	sim := cosineMatrix(vectors)

	// seeds[k] is the question index that seeded cluster k.
	var seeds []int
	var counts []int

	for i := range cleaned {
		if len(seeds) == 0 {
			seeds = append(seeds, i)
			counts = append(counts, 1)
			continue
		}

		best := -1
		bestSim := math.Inf(-1)
		for k, seed := range seeds {
			if s := sim[i][seed]; s > bestSim {
				bestSim = s
				best = k
			}
		}

		if bestSim >= d.threshold {
			counts[best]++
		} else {
			seeds = append(seeds, i)
			counts = append(counts, 1)
		}
	}

	var clusters []Cluster
	for k, seed := range seeds {
		if counts[k] > 1 {
			clusters = append(clusters, Cluster{
				RepresentativeQuestion: cleaned[seed],
				OccurrenceCount:        counts[k],
			})
		}
	}

	d.logger.Info("question dedup complete",
		zap.Int("questions", len(cleaned)),
		zap.Int("clusters", len(seeds)),
		zap.Int("duplicated", len(clusters)))
	return clusters, nil
}

// cosineMatrix builds the full pairwise cosine-similarity matrix by
// row-normalising the vectors and taking dot products.
func cosineMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	normed := make([][]float64, n)
	for i, vec := range vectors {
		row := make([]float64, len(vec))
		var sum float64
		for j, v := range vec {
			row[j] = float64(v)
			sum += row[j] * row[j]
		}
		norm := math.Sqrt(sum) + 1e-12
		for j := range row {
			row[j] /= norm
		}
		normed[i] = row
	}

	sim := make([][]float64, n)
	for i := range normed {
		sim[i] = make([]float64, n)
		for j := range normed {
			var dot float64
			for k := range normed[i] {
				dot += normed[i][k] * normed[j][k]
			}
			sim[i][j] = dot
		}
	}
	return sim
}
