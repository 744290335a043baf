package evaluation

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/clearhelm/kbsearch/internal/domain/evalquery"
	"github.com/clearhelm/kbsearch/internal/logger"
)

// topK must cover the deepest recall cut.
const defaultTopK = 10

// Options holds harness parameters.
type Options struct {
	TopK int // retrieval depth per query, default 10
	// IncludeQueryDetail adds the full per-query retrieved lists to the
	// report for debugging.
	IncludeQueryDetail bool
}

// Service drives the retrieval pipeline over a labeled eval set and
// aggregates quality metrics.
type Service struct {
	retriever     Retriever
	topK          int
	includeDetail bool
}

// New creates an evaluation service.
func New(r Retriever, opts Options) *Service {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Service{retriever: r, topK: topK, includeDetail: opts.IncludeQueryDetail}
}

// accum sums per-query metrics. Recall keeps its own denominator because
// queries with no labeled doc_ids are excluded from recall but still count
// toward MRR.
type accum struct {
	queries   int
	recallN   int
	recallAt5 float64
	recall10  float64
	rrSum     float64
}

func (a *accum) add(r QueryReport, recallDefined bool) {
	a.queries++
	a.rrSum += r.ReciprocalRank
	if recallDefined {
		a.recallN++
		a.recallAt5 += r.RecallAt5
		a.recall10 += r.RecallAt10
	}
}

func (a *accum) triple() Triple {
	t := Triple{}
	if a.recallN > 0 {
		t.RecallAt5 = round4(a.recallAt5 / float64(a.recallN))
		t.RecallAt10 = round4(a.recall10 / float64(a.recallN))
	}
	if a.queries > 0 {
		t.MRR = round4(a.rrSum / float64(a.queries))
	}
	return t
}

// Run evaluates every query and returns the aggregated report. A pipeline
// failure on one query is recorded and does not abort the rest of the batch.
// The report is deterministic for fixed inputs: queries and categories are
// emitted sorted, never in map order.
func (s *Service) Run(ctx context.Context, queries []evalquery.Query) (Report, error) {
	if len(queries) == 0 {
		return Report{}, fmt.Errorf("eval set is empty")
	}
	log := logger.FromContext(ctx)

	overall := &accum{}
	byCategory := make(map[string]*accum)
	report := Report{TotalQueries: len(queries)}

	for _, q := range queries {
		outcome, err := s.retriever.Retrieve(ctx, q.Text(), s.topK)
		if err != nil {
			log.Warn("eval query failed",
				zap.String("query_id", q.ID()), zap.Error(err))
			report.Failed++
			report.Failures = append(report.Failures, Failure{QueryID: q.ID(), Error: err.Error()})
			continue
		}
		if outcome.Degraded() {
			report.Degraded++
		}

		retrieved := outcome.Ranked().IDs()
		expected := q.Expected()

		qr := QueryReport{
			QueryID:        q.ID(),
			Category:       string(q.Category()),
			ReciprocalRank: round4(ReciprocalRank(retrieved, expected)),
		}
		for _, st := range outcome.Statuses() {
			qr.Statuses = append(qr.Statuses, string(st))
		}

		r5, defined := RecallAtK(retrieved, expected, 5)
		if defined {
			r10, _ := RecallAtK(retrieved, expected, 10)
			qr.RecallAt5 = round4(r5)
			qr.RecallAt10 = round4(r10)
		}
		if s.includeDetail {
			qr.Retrieved = retrieved
		}

		overall.add(qr, defined)
		cat := string(q.Category())
		if byCategory[cat] == nil {
			byCategory[cat] = &accum{}
		}
		byCategory[cat].add(qr, defined)

		report.Queries = append(report.Queries, qr)
	}

	report.Measured = overall.queries
	report.Overall = overall.triple()

	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		a := byCategory[cat]
		report.Categories = append(report.Categories, CategoryReport{
			Category: cat,
			Queries:  a.queries,
			Triple:   a.triple(),
		})
	}

	sort.Slice(report.Queries, func(i, j int) bool {
		return report.Queries[i].QueryID < report.Queries[j].QueryID
	})
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].QueryID < report.Failures[j].QueryID
	})
	if !s.includeDetail {
		// Summary-only reports carry the per-category breakdown, not every query.
		report.Queries = nil
	}

	return report, nil
}
