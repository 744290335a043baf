// Package db defines the storage facade for the dense vector store. The
// concrete implementation lives in db/redis; consumers depend on the narrow
// interfaces here.
package db

import (
	"context"
	"time"

	"github.com/clearhelm/kbsearch/internal/domain/predicate"
)

// Store is the vector store facade.
type Store interface {
	Pinger
	HashWriter
	IndexManager
	KNNSearcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashWriter writes hash documents.
type HashWriter interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// KNNSearcher runs vector similarity searches with predicate pre-filtering.
type KNNSearcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// KNNQuery is the input for vector similarity search. The predicate is
// translated to a native pre-filter so filtering happens before the top-k cut.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	Filter       predicate.Predicate
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// IndexFieldType enumerates FT schema field types.
type IndexFieldType string

// FT schema field types.
const (
	IndexFieldTag     IndexFieldType = "TAG"
	IndexFieldNumeric IndexFieldType = "NUMERIC"
	IndexFieldText    IndexFieldType = "TEXT"
	IndexFieldVector  IndexFieldType = "VECTOR"
)

// IndexField is a single FT schema field.
type IndexField struct {
	Name           string
	Type           IndexFieldType
	TagSeparator   string
	VectorDim      int
	VectorM        int
	VectorEFConstr int
}

// IndexDefinition describes an FT index over HASH keys.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}
