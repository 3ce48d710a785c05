package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeIndex is a canned VectorIndex for retriever tests. It records the k
// each search was called with.
type fakeIndex struct {
	docs     []Document
	scored   []ScoredDocument
	err      error
	lastK    int
	lastCall string
}

func (f *fakeIndex) Search(_ context.Context, _ string, k int) ([]Document, error) {
	f.lastK = k
	f.lastCall = "search"
	if f.err != nil {
		return nil, f.err
	}
	if k > len(f.docs) {
		k = len(f.docs)
	}
	return f.docs[:k], nil
}

func (f *fakeIndex) SearchWithScores(_ context.Context, _ string, k int) ([]ScoredDocument, error) {
	f.lastK = k
	f.lastCall = "scored"
	if f.err != nil {
		return nil, f.err
	}
	if k > len(f.scored) {
		k = len(f.scored)
	}
	return f.scored[:k], nil
}

func (f *fakeIndex) Count() int   { return len(f.docs) + len(f.scored) }
func (f *fakeIndex) Close() error { return nil }

func doc(id string) Document {
	return Document{ID: id, Content: "text " + id, Source: id + ".pdf"}
}

func scoredDoc(id string, dist float32) ScoredDocument {
	return ScoredDocument{Document: doc(id), Distance: dist}
}

// ── Construction ────────────────────────────────────────────────────────────

func TestNewAdaptiveRetriever_NilIndex(t *testing.T) {
	t.Parallel()
	if _, err := NewAdaptiveRetriever(nil, 0, 0); err == nil {
		t.Fatal("expected error for nil index")
	}
}

func TestNewAdaptiveRetriever_Defaults(t *testing.T) {
	t.Parallel()
	r, err := NewAdaptiveRetriever(&fakeIndex{}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.poolSize != DefaultPoolSize {
		t.Errorf("poolSize = %d, want %d", r.poolSize, DefaultPoolSize)
	}
	if r.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", r.TopK(), DefaultTopK)
	}
}

// ── Specific queries ────────────────────────────────────────────────────────

func TestRetrieve_SpecificUsesTopK(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{docs: []Document{doc("a"), doc("b"), doc("c"), doc("d")}}
	r, err := NewAdaptiveRetriever(idx, 50, 3)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), "What is the flood monitoring thesis about?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.lastCall != "search" {
		t.Errorf("expected plain search, got %q", idx.lastCall)
	}
	if idx.lastK != 3 {
		t.Errorf("search k = %d, want 3", idx.lastK)
	}
	if len(got) != 3 {
		t.Fatalf("got %d docs, want 3", len(got))
	}
	// Order must match the index's relevance order.
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestRetrieve_SpecificFewerThanK(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{docs: []Document{doc("a"), doc("b")}}
	r, err := NewAdaptiveRetriever(idx, 50, 6)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), "What is thesis X about?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d docs, want 2 (index smaller than k)", len(got))
	}
}

// ── Exhaustive queries ──────────────────────────────────────────────────────

func TestRetrieve_ExhaustiveThreshold(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{scored: []ScoredDocument{
		scoredDoc("a", 0.40),
		scoredDoc("b", 0.50),
		scoredDoc("c", 0.55),
		scoredDoc("d", 0.90),
		scoredDoc("e", 1.40),
	}}
	r, err := NewAdaptiveRetriever(idx, 60, 6)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), "Give me all theses about machine learning")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.lastCall != "scored" {
		t.Errorf("expected scored search, got %q", idx.lastCall)
	}
	if idx.lastK != 60 {
		t.Errorf("pool k = %d, want 60", idx.lastK)
	}

	// best = 0.40, threshold = min(0.40*1.5, 2.0) = 0.60 → a, b, c admitted.
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d docs %v, want %d", len(got), ids(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestRetrieve_ExhaustiveCeiling(t *testing.T) {
	t.Parallel()
	// best = 1.6 → raw threshold 2.4 is capped at 2.0.
	idx := &fakeIndex{scored: []ScoredDocument{
		scoredDoc("a", 1.60),
		scoredDoc("b", 1.90),
		scoredDoc("c", 2.10),
	}}
	r, err := NewAdaptiveRetriever(idx, 60, 6)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), "List all theses on obscure topics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d docs %v, want 2 (ceiling at 2.0)", len(got), ids(got))
	}
}

func TestRetrieve_ExhaustivePartitionsPool(t *testing.T) {
	t.Parallel()
	// Every rejected candidate must score worse than every accepted one.
	idx := &fakeIndex{scored: []ScoredDocument{
		scoredDoc("a", 0.30),
		scoredDoc("b", 0.44),
		scoredDoc("c", 0.45),
		scoredDoc("d", 0.46),
		scoredDoc("e", 0.80),
	}}
	r, err := NewAdaptiveRetriever(idx, 60, 6)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), "list every thesis about agriculture")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	accepted := make(map[string]bool, len(got))
	for _, d := range got {
		accepted[d.ID] = true
	}
	var worstAccepted, bestRejected float32
	bestRejected = 10
	for _, sd := range idx.scored {
		if accepted[sd.ID] {
			if sd.Distance > worstAccepted {
				worstAccepted = sd.Distance
			}
		} else if sd.Distance < bestRejected {
			bestRejected = sd.Distance
		}
	}
	if len(got) == len(idx.scored) {
		return // nothing rejected, trivially partitioned
	}
	if bestRejected <= worstAccepted {
		t.Errorf("threshold did not partition pool: worst accepted %.2f, best rejected %.2f",
			worstAccepted, bestRejected)
	}
}

func TestRetrieve_ExhaustiveEmptyPool(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{}
	r, err := NewAdaptiveRetriever(idx, 60, 6)
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Retrieve(context.Background(), "list all theses")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d docs, want 0 for empty pool", len(got))
	}
}

// ── Errors ──────────────────────────────────────────────────────────────────

func TestRetrieve_SearchError(t *testing.T) {
	t.Parallel()
	idx := &fakeIndex{err: errors.New("index exploded")}
	r, err := NewAdaptiveRetriever(idx, 60, 6)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Retrieve(context.Background(), "What is thesis X about?"); err == nil {
		t.Fatal("expected error from failing index")
	} else if !strings.Contains(err.Error(), "index exploded") {
		t.Errorf("error %q does not wrap the index error", err)
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
