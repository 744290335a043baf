package dense

import (
	"context"
	"testing"

	"github.com/clearhelm/kbsearch/internal/db"
	"github.com/clearhelm/kbsearch/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	hsetItems      []db.HashSetItem
	createdIndex   *db.IndexDefinition
	droppedIndex   string
	dropIndexErr   error
	createIdxErr   error
	hsetMultiErr   error
	indexExists    bool
	indexExistsErr error
	lastKNNFilter  string
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	m.hsetItems = append(m.hsetItems, items...)
	return m.hsetMultiErr
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.createdIndex = def
	return m.createIdxErr
}

func (m *mockStore) DropIndex(_ context.Context, name string) error {
	m.droppedIndex = name
	return m.dropIndexErr
}

func (m *mockStore) IndexExists(_ context.Context, name string) (bool, error) {
	return m.indexExists, m.indexExistsErr
}

// mockEmbedder returns a fixed vector for every text.
type mockEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (m *mockEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	m.texts = append(m.texts, texts...)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = m.vec
	}
	return out, nil
}

func mustDoc(t *testing.T, id string, attrs document.Attrs) document.Document {
	t.Helper()
	if attrs.Category == "" {
		attrs.Category = "networking"
	}
	d, err := document.New(id, "title "+id, "body", attrs)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return d
}
