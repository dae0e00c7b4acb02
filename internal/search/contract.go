// Package search orchestrates hybrid retrieval: query rewriting, parallel
// lexical and vector sub-searches, and reciprocal rank fusion.
package search

import (
	"context"

	"github.com/voyago/tripdex/internal/domain"
)

// Rewriter extracts a structured filter from a free-text query. degraded
// reports that the rewrite could not be performed and the filter is empty.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (filter domain.StructuredFilter, degraded bool)
}

// LexicalSearcher runs a BM25 search over the inverted index.
type LexicalSearcher interface {
	SearchLexical(query string, filter domain.StructuredFilter, limit int) ([]domain.RankedEntry, error)
}

// VectorSearcher runs a cosine-similarity search over the vector index.
type VectorSearcher interface {
	SearchVector(embedding []float32, filter domain.StructuredFilter, limit int) ([]domain.RankedEntry, error)
}
