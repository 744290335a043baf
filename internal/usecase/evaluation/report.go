package evaluation

import (
	"encoding/json"
	"io"
	"math"
)

// Triple is the metric set reported at every aggregation level.
type Triple struct {
	RecallAt5  float64 `json:"recall_at_5"`
	RecallAt10 float64 `json:"recall_at_10"`
	MRR        float64 `json:"mrr"`
}

// CategoryReport is the metric triple for one query category.
type CategoryReport struct {
	Category string `json:"category"`
	Queries  int    `json:"queries"`
	Triple
}

// QueryReport is the per-query detail block.
type QueryReport struct {
	QueryID        string   `json:"query_id"`
	Category       string   `json:"category"`
	RecallAt5      float64  `json:"recall_at_5"`
	RecallAt10     float64  `json:"recall_at_10"`
	ReciprocalRank float64  `json:"reciprocal_rank"`
	Statuses       []string `json:"statuses,omitempty"`
	Retrieved      []string `json:"retrieved,omitempty"`
}

// Failure records one query the pipeline could not answer.
type Failure struct {
	QueryID string `json:"query_id"`
	Error   string `json:"error"`
}

// Report is the full evaluation output. Marshals byte-identically for fixed
// inputs: all slices are sorted before emission.
type Report struct {
	TotalQueries int              `json:"total_queries"`
	Measured     int              `json:"measured"`
	Failed       int              `json:"failed"`
	Degraded     int              `json:"degraded"`
	Overall      Triple           `json:"overall"`
	Categories   []CategoryReport `json:"categories"`
	Queries      []QueryReport    `json:"queries,omitempty"`
	Failures     []Failure        `json:"failures,omitempty"`
}

// WriteJSON writes the indented JSON report.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
