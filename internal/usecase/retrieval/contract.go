package retrieval

import (
	"context"

	"github.com/clearhelm/kbsearch/internal/domain/document"
	"github.com/clearhelm/kbsearch/internal/domain/predicate"
	"github.com/clearhelm/kbsearch/internal/domain/ranking"
)

// Embedder vectorizes query text into an embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs dense similarity search against the vector store.
// The predicate must be applied before the top-k cut, not after.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, pred predicate.Predicate, topK int) (ranking.List, error)
}

// FilterExtractor maps a free-text query to a structured metadata predicate.
// A failure here is recoverable: the pipeline substitutes the empty predicate.
type FilterExtractor interface {
	ExtractFilter(ctx context.Context, query string) (predicate.Predicate, error)
}

// PairScorer is the cross-encoder capability: scores (query, document) pairs,
// one score per input text, in input order.
type PairScorer interface {
	ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error)
}

// SparseSearcher is the in-process lexical index. Pure computation, never
// blocks on I/O.
type SparseSearcher interface {
	Search(query string, pred predicate.Predicate, topK int) ranking.List
}

// DocumentSource resolves doc_ids to full documents for rerank pair building.
type DocumentSource interface {
	Document(id string) (*document.Document, bool)
}
