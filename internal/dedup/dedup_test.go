package dedup

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"agentprobe/internal/embedding"
)

func TestDeduplicateThreeQuestions(t *testing.T) {
	// Q1 and Q3 nearly parallel (cosine ~0.995); Q2 orthogonal to both.
	engine := embedding.NewStaticEngine(3, map[string][]float32{
		"What is your budget?":       {1, 0, 0},
		"Do you need outdoor space?": {0, 1, 0},
		"How much can you spend?":    {0.995, 0.1, 0},
	})
	d := NewDeduplicator(engine, 0.87, zap.NewNop())

	clusters, err := d.Deduplicate(context.Background(), []string{
		"What is your budget?",
		"Do you need outdoor space?",
		"How much can you spend?",
	})
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}

	if len(clusters) != 1 {
		t.Fatalf("expected exactly 1 duplicated cluster, got %d: %v", len(clusters), clusters)
	}
	if clusters[0].RepresentativeQuestion != "What is your budget?" {
		t.Errorf("representative = %q, want the seed question", clusters[0].RepresentativeQuestion)
	}
	if clusters[0].OccurrenceCount != 2 {
		t.Errorf("count = %d, want 2", clusters[0].OccurrenceCount)
	}
}

func TestDeduplicateSingleBatchCall(t *testing.T) {
	engine := embedding.NewStaticEngine(2, map[string][]float32{
		"a?": {1, 0},
		"b?": {0, 1},
	})
	d := NewDeduplicator(engine, 0.87, zap.NewNop())

	if _, err := d.Deduplicate(context.Background(), []string{"a?", "b?", "a?"}); err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if engine.BatchCalls != 1 {
		t.Errorf("expected a single batched embed call, got %d", engine.BatchCalls)
	}
}

func TestDeduplicateTrimsAndDropsBlanks(t *testing.T) {
	engine := embedding.NewStaticEngine(2, map[string][]float32{
		"What is your budget?": {1, 0},
	})
	d := NewDeduplicator(engine, 0.87, zap.NewNop())

	clusters, err := d.Deduplicate(context.Background(), []string{
		"  What is your budget?  ",
		"",
		"   ",
		"What is your budget?",
	})
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if len(clusters) != 1 || clusters[0].OccurrenceCount != 2 {
		t.Errorf("blank handling broke clustering: %v", clusters)
	}
}

func TestDeduplicateEmptyInput(t *testing.T) {
	d := NewDeduplicator(embedding.NewStaticEngine(2, nil), 0.87, zap.NewNop())
	clusters, err := d.Deduplicate(context.Background(), []string{"", "  "})
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	if clusters != nil {
		t.Errorf("expected nil clusters, got %v", clusters)
	}
}

func TestDeduplicateClusterCreationOrder(t *testing.T) {
	engine := embedding.NewStaticEngine(3, map[string][]float32{
		"a?": {1, 0, 0},
		"b?": {0, 1, 0},
		"c?": {0, 0, 1},
	})
	d := NewDeduplicator(engine, 0.87, zap.NewNop())

	clusters, err := d.Deduplicate(context.Background(), []string{
		"b?", "a?", "b?", "a?", "a?",
	})
	if err != nil {
		t.Fatalf("Deduplicate failed: %v", err)
	}
	// b seeded first, so it reports first despite a's higher count.
	want := []Cluster{
		{RepresentativeQuestion: "b?", OccurrenceCount: 2},
		{RepresentativeQuestion: "a?", OccurrenceCount: 3},
	}
	if diff := cmp.Diff(want, clusters); diff != "" {
		t.Errorf("clusters mismatch (-want +got):\n%s", diff)
	}
}

func TestCosineMatrix(t *testing.T) {
	sim := cosineMatrix([][]float32{
		{1, 0},
		{0, 2},
		{3, 0},
	})
	if math.Abs(sim[0][0]-1) > 1e-6 {
		t.Errorf("self similarity = %f, want 1", sim[0][0])
	}
	if math.Abs(sim[0][1]) > 1e-6 {
		t.Errorf("orthogonal similarity = %f, want 0", sim[0][1])
	}
	// Magnitude must not matter.
	if math.Abs(sim[0][2]-1) > 1e-6 {
		t.Errorf("parallel similarity = %f, want 1", sim[0][2])
	}
}
