// Package dense adapts the vector store into the pipeline's dense retrieval
// branch. The store applies the metadata predicate natively before the top-k
// cut; this package owns no ranking logic beyond score passthrough.
package dense

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/clearhelm/kbsearch/internal/db"
	"github.com/clearhelm/kbsearch/internal/domain/document"
	"github.com/clearhelm/kbsearch/internal/domain/predicate"
	"github.com/clearhelm/kbsearch/internal/domain/ranking"
)

const (
	keyPrefix = "kb:doc:"
	indexName = "kb:idx"
)

// store is the consumer interface for dense search and corpus indexing.
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// PassageEmbedder vectorizes document texts, one vector per text.
type PassageEmbedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// Repo implements the dense index client over a db store.
type Repo struct {
	store store
	dims  int
}

// New creates a dense repository. dims is the embedding dimensionality used
// for index creation.
func New(s store, dims int) *Repo {
	return &Repo{store: s, dims: dims}
}

// Search runs a KNN query with predicate pushdown and returns a ranked list
// of doc_ids with cosine similarity scores.
func (r *Repo) Search(
	ctx context.Context, vector []float32, pred predicate.Predicate, topK int,
) (ranking.List, error) {
	q := &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vector,
		Filter:       pred,
		K:            topK,
		ReturnFields: []string{"__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	out := make(ranking.List, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		out = append(out, ranking.NewItem(strings.TrimPrefix(entry.Key, keyPrefix), entry.Score))
	}
	return out, nil
}

// IndexCorpus embeds every document and upserts it with its metadata fields,
// then (re)creates the FT index. Re-indexing must not be interleaved with
// concurrent queries.
func (r *Repo) IndexCorpus(ctx context.Context, docs []document.Document, embed PassageEmbedder) error {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text()
	}
	vectors, err := embed.EmbedPassages(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embed corpus: expected %d vectors, got %d", len(docs), len(vectors))
	}

	items := make([]db.HashSetItem, 0, len(docs))
	for i := range docs {
		items = append(items, db.HashSetItem{
			Key:    keyPrefix + docs[i].ID(),
			Fields: docFields(&docs[i], vectors[i]),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert corpus: %w", err)
	}

	// Fresh index over the new keys.
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("probe index: %w", err)
	}
	if exists {
		if err := r.store.DropIndex(ctx, indexName); err != nil {
			return fmt.Errorf("drop index: %w", err)
		}
	}
	if err := r.store.CreateIndex(ctx, indexDefinition(r.dims)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func docFields(doc *document.Document, vec []float32) map[string]string {
	fields := map[string]string{
		"region":          doc.Region(),
		"product_version": doc.ProductVersion(),
		"category":        string(doc.Category()),
		"deprecated":      strconv.FormatBool(doc.Deprecated()),
		"error_codes":     strings.Join(doc.ErrorCodes(), ","),
		"effective_date":  strconv.FormatInt(doc.EffectiveDate().Unix(), 10),
		"vector":          encodeVector(vec),
	}
	if tg := doc.TopicGroup(); tg != "" {
		fields["topic_group"] = tg
	}
	return fields
}

func indexDefinition(dims int) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: "region", Type: db.IndexFieldTag},
			{Name: "product_version", Type: db.IndexFieldTag},
			{Name: "category", Type: db.IndexFieldTag},
			{Name: "deprecated", Type: db.IndexFieldTag},
			{Name: "error_codes", Type: db.IndexFieldTag, TagSeparator: ","},
			{Name: "effective_date", Type: db.IndexFieldNumeric},
			{Name: "vector", Type: db.IndexFieldVector, VectorDim: dims},
		},
	}
}

func encodeVector(vec []float32) string {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return string(buf)
}
