package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adal-ai/adal-go/internal/logging"
)

const (
	// DefaultPoolSize is the candidate pool requested for exhaustive queries.
	DefaultPoolSize = 60

	// DefaultTopK is the result count for specific queries.
	DefaultTopK = 6

	// thresholdSlack admits exhaustive candidates up to 50% worse than the
	// best match.
	thresholdSlack = 1.5

	// thresholdCeiling bounds the acceptance threshold when even the best
	// match is weak, so a bad pool cannot admit everything.
	thresholdCeiling = 2.0
)

// AdaptiveRetriever chooses a retrieval strategy per question: exhaustive
// questions get a score-thresholded sweep over a large candidate pool,
// specific questions get a plain top-k nearest-neighbor search.
type AdaptiveRetriever struct {
	// index performs the vector similarity search.
	index VectorIndex

	// poolSize is the candidate pool size for exhaustive questions.
	poolSize int

	// topK is the result count for specific questions.
	topK int
}

// NewAdaptiveRetriever constructs an AdaptiveRetriever over the given index.
// Non-positive poolSize or topK fall back to the package defaults.
func NewAdaptiveRetriever(index VectorIndex, poolSize, topK int) (*AdaptiveRetriever, error) {
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &AdaptiveRetriever{
		index:    index,
		poolSize: poolSize,
		topK:     topK,
	}, nil
}

// TopK reports the configured result count for specific questions.
func (r *AdaptiveRetriever) TopK() int {
	return r.topK
}

// Retrieve returns the documents most relevant to the query, ordered most to
// least relevant. The result is empty only when the index is empty or no
// exhaustive candidate meets the acceptance threshold.
func (r *AdaptiveRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	if IsExhaustive(query) {
		return r.retrieveExhaustive(ctx, query)
	}

	docs, err := r.index.Search(ctx, query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("rag: search failed: %w", err)
	}
	logging.FromContext(ctx).Debug("rag: specific retrieval",
		slog.Int("k", r.topK),
		slog.Int("returned", len(docs)),
	)
	return docs, nil
}

// retrieveExhaustive pulls a large scored candidate pool and keeps every
// candidate whose distance is within thresholdSlack of the best match,
// capped at thresholdCeiling. Pool order (most relevant first) is preserved.
//
// The slack and ceiling were tuned against the local embedding scheme's
// score range and are reused as-is under the remote scheme.
func (r *AdaptiveRetriever) retrieveExhaustive(ctx context.Context, query string) ([]Document, error) {
	scored, err := r.index.SearchWithScores(ctx, query, r.poolSize)
	if err != nil {
		return nil, fmt.Errorf("rag: scored search failed: %w", err)
	}
	if len(scored) == 0 {
		return nil, nil
	}

	best := scored[0].Distance
	for _, sd := range scored[1:] {
		if sd.Distance < best {
			best = sd.Distance
		}
	}
	threshold := best * thresholdSlack
	if threshold > thresholdCeiling {
		threshold = thresholdCeiling
	}

	docs := make([]Document, 0, len(scored))
	for _, sd := range scored {
		if sd.Distance <= threshold {
			docs = append(docs, sd.Document)
		}
	}

	logging.FromContext(ctx).Debug("rag: exhaustive retrieval",
		slog.Int("pool", len(scored)),
		slog.Int("kept", len(docs)),
		slog.Float64("best_distance", float64(best)),
		slog.Float64("threshold", float64(threshold)),
	)

	return docs, nil
}
