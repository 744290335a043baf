// Package evaluation quantifies retrieval quality against a labeled query
// set: Recall@K and MRR, overall and per category, with per-query failure
// isolation.
package evaluation

// RecallAtK computes |retrieved[:k] ∩ expected| / |expected|. The second
// return is false when expected is empty: the metric is undefined there and
// the caller must exclude the query instead of treating it as zero.
func RecallAtK(retrieved, expected []string, k int) (float64, bool) {
	if len(expected) == 0 {
		return 0, false
	}
	if k > len(retrieved) {
		k = len(retrieved)
	}

	expectedSet := make(map[string]bool, len(expected))
	for _, id := range expected {
		expectedSet[id] = true
	}

	hits := 0
	for _, id := range retrieved[:k] {
		if expectedSet[id] {
			hits++
		}
	}
	return float64(hits) / float64(len(expectedSet)), true
}

// ReciprocalRank returns 1/rank of the first retrieved doc_id present in
// expected (1-based), or 0 when none is.
func ReciprocalRank(retrieved, expected []string) float64 {
	expectedSet := make(map[string]bool, len(expected))
	for _, id := range expected {
		expectedSet[id] = true
	}

	for i, id := range retrieved {
		if expectedSet[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
