// Package ranking defines the uniform ranked-list contract shared by every
// retrieval stage: an ordered sequence of (doc_id, score) pairs with unique
// doc_ids and descending scores.
package ranking

// Item is a single (doc_id, score) entry of a ranked list.
type Item struct {
	id    string
	score float64
}

// NewItem creates a ranked list entry.
func NewItem(id string, score float64) Item {
	return Item{id: id, score: score}
}

// ID returns the document identifier.
func (i Item) ID() string { return i.id }

// Score returns the relevance score.
func (i Item) Score() float64 { return i.score }

// List is an ordered sequence of ranked items, best first.
type List []Item

// IDs returns the doc_ids in rank order.
func (l List) IDs() []string {
	ids := make([]string, len(l))
	for i, it := range l {
		ids[i] = it.ID()
	}
	return ids
}

// Truncate returns the list cut to at most n entries.
func (l List) Truncate(n int) List {
	if n < 0 || len(l) <= n {
		return l
	}
	return l[:n]
}

// Status tags a retrieval outcome as fully successful or degraded.
type Status string

// Outcome statuses. Degraded outcomes carry a best-effort ranking plus the
// reason the pipeline fell back.
const (
	StatusOK                     Status = "ok"
	StatusRerankDegraded         Status = "rerank_degraded"
	StatusFilterExtractionFailed Status = "filter_extraction_failed"
)

// Outcome is the result of a full pipeline run: the final ranking plus the
// degradation statuses observed along the way. Degraded-mode conditions are
// absorbed into statuses rather than surfaced as errors so callers can
// distinguish normal from degraded results in aggregate.
type Outcome struct {
	ranked   List
	statuses []Status
}

// NewOutcome creates an ok outcome over the given ranking.
func NewOutcome(ranked List) Outcome {
	return Outcome{ranked: ranked}
}

// WithStatus returns a copy with the given degradation status appended.
func (o Outcome) WithStatus(s Status) Outcome {
	statuses := make([]Status, 0, len(o.statuses)+1)
	statuses = append(statuses, o.statuses...)
	statuses = append(statuses, s)
	return Outcome{ranked: o.ranked, statuses: statuses}
}

// WithRanking returns a copy with the ranking replaced.
func (o Outcome) WithRanking(ranked List) Outcome {
	return Outcome{ranked: ranked, statuses: o.statuses}
}

// Ranked returns the final ranked list.
func (o Outcome) Ranked() List { return o.ranked }

// Degraded reports whether any stage fell back to a degraded mode.
func (o Outcome) Degraded() bool { return len(o.statuses) > 0 }

// Statuses returns the degradation statuses in the order they occurred.
// Empty for a fully successful run.
func (o Outcome) Statuses() []Status { return o.statuses }

// HasStatus reports whether the outcome carries the given status.
func (o Outcome) HasStatus(s Status) bool {
	for _, st := range o.statuses {
		if st == s {
			return true
		}
	}
	return false
}
