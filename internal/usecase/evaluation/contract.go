package evaluation

import (
	"context"

	"github.com/clearhelm/kbsearch/internal/domain/ranking"
)

// Retriever runs the full hybrid pipeline for one query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (ranking.Outcome, error)
}
