package retrieval

import (
	"sort"

	"github.com/clearhelm/kbsearch/internal/domain/ranking"
)

// DefaultRRFK is the standard Reciprocal Rank Fusion constant
// (Cormack et al. 2009). It dampens rank-1 dominance; callers may tune it.
const DefaultRRFK = 60

// fuseRRF merges any number of ranked lists via Reciprocal Rank Fusion:
// score(d) = sum of 1/(k + rank_i(d)) over every list containing d, with
// 1-based ranks. Deterministic: ties are broken by the document's best rank
// across inputs, then by doc_id ascending. Pure function of its inputs.
func fuseRRF(lists []ranking.List, kConstant, topK int) ranking.List {
	if kConstant <= 0 {
		kConstant = DefaultRRFK
	}

	type scored struct {
		id       string
		score    float64
		bestRank int
	}

	merged := make(map[string]*scored)
	// order keeps first-seen insertion order so map iteration never leaks
	// into the output.
	var order []string

	for _, list := range lists {
		for rank, item := range list {
			contribution := 1.0 / float64(kConstant+rank+1)
			if existing, ok := merged[item.ID()]; ok {
				existing.score += contribution
				if rank+1 < existing.bestRank {
					existing.bestRank = rank + 1
				}
			} else {
				merged[item.ID()] = &scored{id: item.ID(), score: contribution, bestRank: rank + 1}
				order = append(order, item.ID())
			}
		}
	}

	results := make([]*scored, 0, len(order))
	for _, id := range order {
		results = append(results, merged[id])
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.bestRank != b.bestRank {
			return a.bestRank < b.bestRank
		}
		return a.id < b.id
	})

	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}

	out := make(ranking.List, len(results))
	for i, s := range results {
		out[i] = ranking.NewItem(s.id, s.score)
	}
	return out
}
