// Package corpus loads the knowledge base and the eval set from their JSON
// files and materializes them as validated domain values.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/clearhelm/kbsearch/internal/domain/document"
	"github.com/clearhelm/kbsearch/internal/domain/evalquery"
)

const dateLayout = "2006-01-02"

type documentRecord struct {
	DocID          string   `json:"doc_id"`
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	Region         string   `json:"region"`
	ProductVersion string   `json:"product_version"`
	EffectiveDate  string   `json:"effective_date"`
	ErrorCodes     []string `json:"error_codes"`
	Category       string   `json:"category"`
	Deprecated     bool     `json:"deprecated"`
	TopicGroup     *string  `json:"topic_group"`
}

// LoadDocuments reads the corpus file, a JSON array of article records.
func LoadDocuments(path string) ([]document.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return ParseDocuments(raw)
}

// ParseDocuments decodes and validates a JSON array of article records.
func ParseDocuments(raw []byte) ([]document.Document, error) {
	var records []documentRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	docs := make([]document.Document, 0, len(records))
	for _, rec := range records {
		var effective time.Time
		if rec.EffectiveDate != "" {
			parsed, err := time.Parse(dateLayout, rec.EffectiveDate)
			if err != nil {
				return nil, fmt.Errorf("document %s: effective_date %q: %w", rec.DocID, rec.EffectiveDate, err)
			}
			effective = parsed
		}

		attrs := document.Attrs{
			Region:         rec.Region,
			ProductVersion: rec.ProductVersion,
			EffectiveDate:  effective,
			ErrorCodes:     rec.ErrorCodes,
			Category:       rec.Category,
			Deprecated:     rec.Deprecated,
		}
		if rec.TopicGroup != nil {
			attrs.TopicGroup = *rec.TopicGroup
		}

		doc, err := document.New(rec.DocID, rec.Title, rec.Body, attrs)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

type evalQueryRecord struct {
	QueryID        string   `json:"query_id"`
	Query          string   `json:"query"`
	Category       string   `json:"category"`
	ExpectedDocIDs []string `json:"expected_doc_ids"`
}

// LoadEvalSet reads the eval set file, a JSON array of labeled queries.
// An unknown category anywhere in the file fails the whole load.
func LoadEvalSet(path string) ([]evalquery.Query, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read eval set: %w", err)
	}
	return ParseEvalSet(raw)
}

// ParseEvalSet decodes and validates a JSON array of labeled queries.
func ParseEvalSet(raw []byte) ([]evalquery.Query, error) {
	var records []evalQueryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode eval set: %w", err)
	}

	queries := make([]evalquery.Query, 0, len(records))
	for _, rec := range records {
		q, err := evalquery.New(rec.QueryID, rec.Query, evalquery.Category(rec.Category), rec.ExpectedDocIDs)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}
