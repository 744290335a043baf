package evaluation

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/clearhelm/kbsearch/internal/domain/evalquery"
	"github.com/clearhelm/kbsearch/internal/domain/ranking"
)

type mockRetriever struct {
	fn   func(query string) (ranking.Outcome, error)
	topK []int
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, topK int) (ranking.Outcome, error) {
	m.topK = append(m.topK, topK)
	return m.fn(query)
}

func outcomeOf(ids ...string) ranking.Outcome {
	items := make(ranking.List, len(ids))
	for i, id := range ids {
		items[i] = ranking.NewItem(id, 1.0/float64(i+1))
	}
	return ranking.NewOutcome(items)
}

func mustQuery(t *testing.T, id, text string, cat evalquery.Category, expected ...string) evalquery.Query {
	t.Helper()
	q, err := evalquery.New(id, text, cat, expected)
	if err != nil {
		t.Fatalf("build query %s: %v", id, err)
	}
	return q
}

func TestRun_AggregatesOverallAndPerCategory(t *testing.T) {
	retriever := &mockRetriever{fn: func(query string) (ranking.Outcome, error) {
		switch query {
		case "q one":
			return outcomeOf("a", "b"), nil // hit at rank 1
		case "q two":
			return outcomeOf("x", "b"), nil // hit at rank 2
		default:
			return outcomeOf("x", "y"), nil // miss
		}
	}}
	svc := New(retriever, Options{})

	report, err := svc.Run(context.Background(), []evalquery.Query{
		mustQuery(t, "Q-001", "q one", evalquery.CategoryExactMatch, "a"),
		mustQuery(t, "Q-002", "q two", evalquery.CategoryExactMatch, "b"),
		mustQuery(t, "Q-003", "q three", evalquery.CategoryBroad, "a"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalQueries != 3 || report.Measured != 3 || report.Failed != 0 {
		t.Errorf("counts: total=%d measured=%d failed=%d", report.TotalQueries, report.Measured, report.Failed)
	}
	// recall@5: 1 + 1 + 0 over 3; MRR: (1 + 0.5 + 0) / 3
	if math.Abs(report.Overall.RecallAt5-round4(2.0/3.0)) > 1e-9 {
		t.Errorf("overall recall@5 = %f", report.Overall.RecallAt5)
	}
	if math.Abs(report.Overall.MRR-0.5) > 1e-9 {
		t.Errorf("overall mrr = %f", report.Overall.MRR)
	}

	if len(report.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(report.Categories))
	}
	// Sorted: broad before exact_match.
	if report.Categories[0].Category != "broad" || report.Categories[1].Category != "exact_match" {
		t.Errorf("categories must be sorted: %v", report.Categories)
	}
	if report.Categories[0].Queries != 1 || report.Categories[0].MRR != 0 {
		t.Errorf("broad category: %+v", report.Categories[0])
	}
	if report.Categories[1].Queries != 2 || math.Abs(report.Categories[1].MRR-0.75) > 1e-9 {
		t.Errorf("exact_match category: %+v", report.Categories[1])
	}
}

func TestRun_IsolatesPerQueryFailures(t *testing.T) {
	retriever := &mockRetriever{fn: func(query string) (ranking.Outcome, error) {
		if query == "broken" {
			return ranking.Outcome{}, errors.New("store unreachable")
		}
		return outcomeOf("a"), nil
	}}
	svc := New(retriever, Options{})

	report, err := svc.Run(context.Background(), []evalquery.Query{
		mustQuery(t, "Q-001", "broken", evalquery.CategoryScoped, "a"),
		mustQuery(t, "Q-002", "fine", evalquery.CategoryScoped, "a"),
	})
	if err != nil {
		t.Fatalf("one bad query must not abort the batch: %v", err)
	}
	if report.Failed != 1 || report.Measured != 1 {
		t.Errorf("failed=%d measured=%d", report.Failed, report.Measured)
	}
	if len(report.Failures) != 1 || report.Failures[0].QueryID != "Q-001" {
		t.Errorf("failures: %+v", report.Failures)
	}
	// The failed query contributes nothing to the metrics.
	if report.Overall.MRR != 1.0 {
		t.Errorf("mrr = %f, want 1.0 from the surviving query", report.Overall.MRR)
	}
}

func TestRun_CountsDegradedOutcomes(t *testing.T) {
	retriever := &mockRetriever{fn: func(query string) (ranking.Outcome, error) {
		out := outcomeOf("a")
		if query == "degraded" {
			out = out.WithStatus(ranking.StatusRerankDegraded)
		}
		return out, nil
	}}
	svc := New(retriever, Options{IncludeQueryDetail: true})

	report, err := svc.Run(context.Background(), []evalquery.Query{
		mustQuery(t, "Q-001", "degraded", evalquery.CategoryBroad, "a"),
		mustQuery(t, "Q-002", "fine", evalquery.CategoryBroad, "a"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Degraded != 1 {
		t.Errorf("degraded = %d, want 1", report.Degraded)
	}
	if len(report.Queries) != 2 || len(report.Queries[0].Statuses) != 1 {
		t.Errorf("per-query statuses not recorded: %+v", report.Queries)
	}
}

func TestRun_ExcludesUnlabeledFromRecall(t *testing.T) {
	retriever := &mockRetriever{fn: func(query string) (ranking.Outcome, error) {
		return outcomeOf("a"), nil
	}}
	svc := New(retriever, Options{})

	report, err := svc.Run(context.Background(), []evalquery.Query{
		mustQuery(t, "Q-001", "labeled", evalquery.CategoryBroad, "a"),
		mustQuery(t, "Q-002", "unlabeled", evalquery.CategoryBroad),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The unlabeled query would drag recall to 0.5 if it were divided in.
	if report.Overall.RecallAt5 != 1.0 {
		t.Errorf("recall@5 = %f, want 1.0 with the unlabeled query excluded", report.Overall.RecallAt5)
	}
}

func TestRun_DeterministicReportBytes(t *testing.T) {
	retriever := &mockRetriever{fn: func(query string) (ranking.Outcome, error) {
		return outcomeOf("a", "b", "c"), nil
	}}
	svc := New(retriever, Options{IncludeQueryDetail: true})

	queries := []evalquery.Query{
		mustQuery(t, "Q-003", "three", evalquery.CategoryMultiDoc, "a", "b"),
		mustQuery(t, "Q-001", "one", evalquery.CategoryExactMatch, "a"),
		mustQuery(t, "Q-002", "two", evalquery.CategoryDeprecatedTrap, "z"),
	}

	var first bytes.Buffer
	report, err := svc.Run(context.Background(), queries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := report.WriteJSON(&first); err != nil {
		t.Fatalf("write report: %v", err)
	}

	for run := 0; run < 5; run++ {
		var again bytes.Buffer
		report, err := svc.Run(context.Background(), queries)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if err := report.WriteJSON(&again); err != nil {
			t.Fatalf("run %d write: %v", run, err)
		}
		if !bytes.Equal(first.Bytes(), again.Bytes()) {
			t.Fatalf("run %d produced different report bytes", run)
		}
	}

	// Per-query entries come out sorted by query_id regardless of input order.
	if report.Queries[0].QueryID != "Q-001" || report.Queries[2].QueryID != "Q-003" {
		t.Errorf("queries not sorted: %+v", report.Queries)
	}
}

func TestRun_EmptyEvalSet(t *testing.T) {
	svc := New(&mockRetriever{fn: func(string) (ranking.Outcome, error) {
		return ranking.Outcome{}, nil
	}}, Options{})
	if _, err := svc.Run(context.Background(), nil); err == nil {
		t.Error("empty eval set must be rejected")
	}
}

func TestRun_RetrievalDepthCoversRecallCut(t *testing.T) {
	retriever := &mockRetriever{fn: func(string) (ranking.Outcome, error) {
		return outcomeOf("a"), nil
	}}
	svc := New(retriever, Options{})

	if _, err := svc.Run(context.Background(), []evalquery.Query{
		mustQuery(t, "Q-001", "q", evalquery.CategoryBroad, "a"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(retriever.topK) != 1 || retriever.topK[0] != 10 {
		t.Errorf("default retrieval depth must be 10, got %v", retriever.topK)
	}
}
