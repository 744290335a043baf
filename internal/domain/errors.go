package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPredicate signals a malformed metadata predicate (unknown field,
	// bad value, malformed date range). Rejected at construction, before any search.
	ErrInvalidPredicate = errors.New("invalid predicate")
	// ErrDuplicateDocID signals a duplicate doc_id at index build time.
	ErrDuplicateDocID = errors.New("duplicate doc_id")
	// ErrEmptyCorpus signals an index build over zero documents.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrInvalidDocument signals a document that fails schema validation.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidEvalQuery signals an eval query with an unknown category or no id.
	ErrInvalidEvalQuery = errors.New("invalid eval query")
	// ErrRetrievalUnavailable signals that a mandatory retrieval stage (sparse or
	// dense) produced no result. Fatal for the affected query: an empty list would
	// be indistinguishable from "no relevant documents exist".
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankerUnavailable signals a reranker capability failure. Callers recover
	// by falling back to the fused order; it never propagates out of the pipeline.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
)

// DuplicateDocIDError wraps ErrDuplicateDocID with the offending id.
type DuplicateDocIDError struct {
	DocID string
}

func (e *DuplicateDocIDError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateDocID.Error(), e.DocID)
}

func (e *DuplicateDocIDError) Unwrap() error { return ErrDuplicateDocID }

// NewDuplicateDocID creates a duplicate doc_id error.
func NewDuplicateDocID(docID string) error {
	return &DuplicateDocIDError{DocID: docID}
}
