// Package evalquery defines the labeled queries the evaluation harness runs.
package evalquery

import (
	"fmt"
	"sort"

	"github.com/clearhelm/kbsearch/internal/domain"
)

// Category names the failure mode a query is designed to stress.
type Category string

// Eval query categories.
const (
	CategoryExactMatch     Category = "exact_match"
	CategoryScoped         Category = "scoped"
	CategoryMultiDoc       Category = "multi_doc"
	CategoryBroad          Category = "broad"
	CategoryDeprecatedTrap Category = "deprecated_trap"
)

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryExactMatch, CategoryScoped, CategoryMultiDoc, CategoryBroad, CategoryDeprecatedTrap:
		return Category(s), nil
	}
	return "", fmt.Errorf("%w: unknown category %q", domain.ErrInvalidEvalQuery, s)
}

// Query is one labeled entry of the eval set. Immutable once constructed.
type Query struct {
	id       string
	text     string
	category Category
	expected []string
}

// New validates and creates a Query. Expected doc_ids are deduplicated and
// stored sorted. An empty expected set is allowed: the harness excludes such
// queries from recall rather than dividing by zero.
func New(id, text string, category Category, expectedDocIDs []string) (Query, error) {
	if id == "" {
		return Query{}, fmt.Errorf("%w: query_id is required", domain.ErrInvalidEvalQuery)
	}
	if text == "" {
		return Query{}, fmt.Errorf("%w: query_text is required for %s", domain.ErrInvalidEvalQuery, id)
	}
	if _, err := ParseCategory(string(category)); err != nil {
		return Query{}, fmt.Errorf("query %s: %w", id, err)
	}

	seen := make(map[string]bool, len(expectedDocIDs))
	expected := make([]string, 0, len(expectedDocIDs))
	for _, docID := range expectedDocIDs {
		if docID == "" {
			return Query{}, fmt.Errorf("%w: query %s has an empty expected doc_id", domain.ErrInvalidEvalQuery, id)
		}
		if !seen[docID] {
			seen[docID] = true
			expected = append(expected, docID)
		}
	}
	sort.Strings(expected)

	return Query{id: id, text: text, category: category, expected: expected}, nil
}

func (q Query) ID() string         { return q.id }
func (q Query) Text() string       { return q.text }
func (q Query) Category() Category { return q.category }

// Expected returns the labeled relevant doc_ids, sorted.
func (q Query) Expected() []string {
	out := make([]string, len(q.expected))
	copy(out, q.expected)
	return out
}
