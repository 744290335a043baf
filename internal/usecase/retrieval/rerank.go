package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/clearhelm/kbsearch/internal/domain/ranking"
	"github.com/clearhelm/kbsearch/internal/logger"
)

// UnscoredPolicy controls where candidates the scorer did not cover end up
// after a partial rerank response.
type UnscoredPolicy string

// Unscored candidate policies.
const (
	// UnscoredKeepFusedRank keeps unscored candidates at their pre-rerank
	// positions; scored candidates are re-sorted among the remaining slots.
	UnscoredKeepFusedRank UnscoredPolicy = "keep_fused_rank"
	// UnscoredDemote moves unscored candidates below every scored one,
	// preserving their relative fused order.
	UnscoredDemote UnscoredPolicy = "demote"
)

// rerank rescores the candidate list with the cross-encoder and re-sorts by
// that score. The candidate set is preserved exactly: reranking reorders, it
// never filters. Any scorer failure (or a partial/oversized response) degrades
// to the fused order instead of failing the request; the returned bool reports
// whether degradation happened.
func (s *Service) rerank(ctx context.Context, query string, candidates ranking.List) (ranking.List, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		doc, ok := s.docs.Document(c.ID())
		if !ok {
			// A candidate the corpus cannot resolve means the ranked lists
			// and the corpus disagree; fall back rather than guess.
			logger.FromContext(ctx).Warn("rerank candidate missing from corpus",
				zap.String("doc_id", c.ID()))
			return candidates, true
		}
		texts[i] = doc.Text()
	}

	scores, err := s.scorer.ScorePairs(ctx, query, texts)
	if err != nil {
		logger.FromContext(ctx).Warn("rerank failed, keeping fused order", zap.Error(err))
		return candidates, true
	}
	if len(scores) > len(candidates) {
		logger.FromContext(ctx).Warn("reranker returned more scores than pairs, keeping fused order",
			zap.Int("pairs", len(candidates)), zap.Int("scores", len(scores)))
		return candidates, true
	}

	if len(scores) == len(candidates) {
		return sortByScore(candidates, scores), false
	}

	// Partial response: scores correspond to the first len(scores) pairs in
	// input order. Unscored candidates fall back to the fused order.
	logger.FromContext(ctx).Warn("reranker returned partial scores",
		zap.Int("pairs", len(candidates)), zap.Int("scores", len(scores)))

	scored := sortByScore(candidates[:len(scores)], scores)
	unscored := candidates[len(scores):]

	switch s.unscoredPolicy {
	case UnscoredKeepFusedRank:
		return mergeKeepingFusedRank(candidates, scored, unscored), true
	default: // UnscoredDemote
		out := make(ranking.List, 0, len(candidates))
		out = append(out, scored...)
		out = append(out, unscored...)
		return out, true
	}
}

// sortByScore reorders candidates by their cross-encoder scores descending.
// Ties keep the fused (input) order so the result stays deterministic.
func sortByScore(candidates ranking.List, scores []float64) ranking.List {
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	out := make(ranking.List, len(candidates))
	for i, j := range idx {
		out[i] = ranking.NewItem(candidates[j].ID(), scores[j])
	}
	return out
}

// mergeKeepingFusedRank places unscored candidates back at their original
// positions and fills the remaining slots with the scored candidates in
// rescored order.
func mergeKeepingFusedRank(original, scored, unscored ranking.List) ranking.List {
	unscoredIDs := make(map[string]bool, len(unscored))
	for _, u := range unscored {
		unscoredIDs[u.ID()] = true
	}

	out := make(ranking.List, len(original))
	next := 0
	for i, item := range original {
		if unscoredIDs[item.ID()] {
			out[i] = item
		} else {
			out[i] = scored[next]
			next++
		}
	}
	return out
}
