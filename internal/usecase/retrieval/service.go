// Package retrieval orchestrates the hybrid pipeline: filter extraction,
// parallel sparse+dense search under one predicate, RRF fusion, and optional
// cross-encoder reranking.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clearhelm/kbsearch/internal/domain"
	"github.com/clearhelm/kbsearch/internal/domain/predicate"
	"github.com/clearhelm/kbsearch/internal/domain/ranking"
	"github.com/clearhelm/kbsearch/internal/logger"
	"github.com/clearhelm/kbsearch/internal/metrics"
)

// overRetrieveFactor over-fetches each retrieval branch before fusion so the
// fused list has enough depth to reorder meaningfully.
const overRetrieveFactor = 3

// Options holds the tunable pipeline parameters.
type Options struct {
	RRFK           int            // RRF constant, default DefaultRRFK
	RerankTopN     int            // candidates handed to the cross-encoder; 0 disables reranking
	UnscoredPolicy UnscoredPolicy // placement of unscored candidates after a partial rerank
	// SparseUnfilteredFallback retries the sparse branch without the
	// predicate when filtering matched nothing at all in that branch.
	// Off by default: it trades strict filter correctness for recall.
	SparseUnfilteredFallback bool
}

// Service runs the hybrid retrieval pipeline. Safe for concurrent use once
// constructed: the sparse index is read-only and every other dependency is
// an external capability.
type Service struct {
	sparse         SparseSearcher
	docs           DocumentSource
	dense          VectorSearcher
	embed          Embedder
	extractor      FilterExtractor
	scorer         PairScorer
	rrfK           int
	rerankTopN     int
	unscoredPolicy UnscoredPolicy
	sparseFallback bool
}

// New creates a retrieval service. extractor and scorer may be nil, which
// disables filter extraction and reranking respectively.
func New(
	sparse SparseSearcher, docs DocumentSource,
	dense VectorSearcher, embed Embedder,
	extractor FilterExtractor, scorer PairScorer,
	opts Options,
) *Service {
	rrfK := opts.RRFK
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	policy := opts.UnscoredPolicy
	if policy == "" {
		policy = UnscoredKeepFusedRank
	}
	return &Service{
		sparse:         sparse,
		docs:           docs,
		dense:          dense,
		embed:          embed,
		extractor:      extractor,
		scorer:         scorer,
		rrfK:           rrfK,
		rerankTopN:     opts.RerankTopN,
		unscoredPolicy: policy,
		sparseFallback: opts.SparseUnfilteredFallback,
	}
}

// Retrieve runs the full pipeline for one query and returns the top-k ranked
// outcome. Filter extraction and rerank failures degrade the outcome;
// a dense branch failure is fatal for the query (ErrRetrievalUnavailable).
func (s *Service) Retrieve(ctx context.Context, query string, topK int) (ranking.Outcome, error) {
	if topK <= 0 {
		return ranking.Outcome{}, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	outcome := ranking.NewOutcome(nil)

	pred := predicate.Predicate{}
	if s.extractor != nil {
		start := time.Now()
		extracted, err := s.extractor.ExtractFilter(ctx, query)
		observeStage("filter_extract", start)
		if err != nil {
			logger.FromContext(ctx).Warn("filter extraction failed, using empty predicate",
				zap.Error(err))
			metrics.FilterExtractionFailuresTotal.Inc()
			outcome = outcome.WithStatus(ranking.StatusFilterExtractionFailed)
		} else {
			pred = extracted
		}
	}

	overK := topK * overRetrieveFactor

	// The two branches are independent given the predicate; run dense
	// concurrently with the in-process sparse scoring.
	type denseResult struct {
		list ranking.List
		err  error
	}
	denseCh := make(chan denseResult, 1)
	go func() {
		start := time.Now()
		list, err := s.searchDense(ctx, query, pred, overK)
		observeStage("dense", start)
		denseCh <- denseResult{list: list, err: err}
	}()

	sparseStart := time.Now()
	sparseList := s.sparse.Search(query, pred, overK)
	if len(sparseList) == 0 && !pred.IsEmpty() && s.sparseFallback {
		logger.FromContext(ctx).Warn("sparse branch empty after filtering, retrying unfiltered")
		sparseList = s.sparse.Search(query, predicate.Predicate{}, overK)
	}
	observeStage("sparse", sparseStart)

	dense := <-denseCh
	if dense.err != nil {
		return ranking.Outcome{}, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, dense.err)
	}

	fuseStart := time.Now()
	fused := fuseRRF([]ranking.List{sparseList, dense.list}, s.rrfK, overK)
	observeStage("fuse", fuseStart)

	if s.scorer == nil || s.rerankTopN <= 0 || len(fused) == 0 {
		return outcome.WithRanking(fused.Truncate(topK)), nil
	}

	n := s.rerankTopN
	if n > len(fused) {
		n = len(fused)
	}
	rerankStart := time.Now()
	reranked, degraded := s.rerank(ctx, query, fused[:n])
	observeStage("rerank", rerankStart)
	if degraded {
		metrics.RerankDegradedTotal.Inc()
		outcome = outcome.WithStatus(ranking.StatusRerankDegraded)
	}

	final := make(ranking.List, 0, len(fused))
	final = append(final, reranked...)
	final = append(final, fused[n:]...)

	return outcome.WithRanking(final.Truncate(topK)), nil
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// searchDense embeds the query and delegates to the vector store.
func (s *Service) searchDense(
	ctx context.Context, query string, pred predicate.Predicate, topK int,
) (ranking.List, error) {
	vector, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	list, err := s.dense.Search(ctx, vector, pred, topK)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return list, nil
}
