package retrieval

import (
	"context"
	"testing"

	"github.com/clearhelm/kbsearch/internal/domain/document"
	"github.com/clearhelm/kbsearch/internal/domain/predicate"
	"github.com/clearhelm/kbsearch/internal/domain/ranking"
)

type mockSparse struct {
	fn    func(query string, pred predicate.Predicate, topK int) ranking.List
	calls []predicate.Predicate
}

func (m *mockSparse) Search(query string, pred predicate.Predicate, topK int) ranking.List {
	m.calls = append(m.calls, pred)
	if m.fn == nil {
		return nil
	}
	return m.fn(query, pred, topK)
}

type mockDense struct {
	fn    func(ctx context.Context, vector []float32, pred predicate.Predicate, topK int) (ranking.List, error)
	calls []predicate.Predicate
}

func (m *mockDense) Search(ctx context.Context, vector []float32, pred predicate.Predicate, topK int) (ranking.List, error) {
	m.calls = append(m.calls, pred)
	if m.fn == nil {
		return nil, nil
	}
	return m.fn(ctx, vector, pred, topK)
}

type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.vector != nil {
		return m.vector, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type mockExtractor struct {
	pred predicate.Predicate
	err  error
}

func (m *mockExtractor) ExtractFilter(ctx context.Context, query string) (predicate.Predicate, error) {
	return m.pred, m.err
}

type mockScorer struct {
	fn func(query string, texts []string) ([]float64, error)
}

func (m *mockScorer) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	return m.fn(query, texts)
}

type mockDocs struct {
	docs map[string]*document.Document
}

func (m *mockDocs) Document(id string) (*document.Document, bool) {
	doc, ok := m.docs[id]
	return doc, ok
}

func newMockDocs(t *testing.T, ids ...string) *mockDocs {
	t.Helper()
	out := &mockDocs{docs: make(map[string]*document.Document, len(ids))}
	for _, id := range ids {
		doc, err := document.New(id, "title "+id, "body "+id, document.Attrs{
			Region:   "eu-west",
			Category: "authentication",
		})
		if err != nil {
			t.Fatalf("build doc %s: %v", id, err)
		}
		out.docs[id] = &doc
	}
	return out
}

func mustPredicate(t *testing.T, spec predicate.Spec) predicate.Predicate {
	t.Helper()
	pred, err := predicate.New(spec)
	if err != nil {
		t.Fatalf("build predicate: %v", err)
	}
	return pred
}

func strPtr(s string) *string { return &s }

func assertIDs(t *testing.T, got ranking.List, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d results %v, got %d %v", len(want), want, len(got), got.IDs())
	}
	for i := range want {
		if got[i].ID() != want[i] {
			t.Errorf("rank %d = %s, want %s (full: %v)", i, got[i].ID(), want[i], got.IDs())
		}
	}
}
