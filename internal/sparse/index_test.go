package sparse

import (
	"errors"
	"testing"
	"time"

	"github.com/clearhelm/kbsearch/internal/domain"
	"github.com/clearhelm/kbsearch/internal/domain/document"
	"github.com/clearhelm/kbsearch/internal/domain/predicate"
)

func makeDoc(t *testing.T, id, title, body string, attrs document.Attrs) document.Document {
	t.Helper()
	if attrs.Category == "" {
		attrs.Category = "networking"
	}
	d, err := document.New(id, title, body, attrs)
	if err != nil {
		t.Fatalf("document.New(%s): %v", id, err)
	}
	return d
}

func testCorpus(t *testing.T) []document.Document {
	t.Helper()
	return []document.Document{
		makeDoc(t, "KB-0001", "Fixing error E-4012 in EU",
			"Reset via the EU SSO portal and clear the regional session cache.",
			document.Attrs{Region: "EU", Category: "networking", ErrorCodes: []string{"E-4012"}}),
		makeDoc(t, "KB-0002", "Fixing error E-4012 in US",
			"Flush the resolver cache with the admin CLI.",
			document.Attrs{Region: "US", Category: "networking", ErrorCodes: []string{"E-4012"}}),
		makeDoc(t, "KB-0003", "Billing invoice overview",
			"Invoices are generated monthly for each account.",
			document.Attrs{Region: "EU", Category: "billing"}),
		makeDoc(t, "KB-0004", "Legacy VPN setup",
			"Old VPN client configuration for the EU region session cache.",
			document.Attrs{Region: "EU", Category: "networking", Deprecated: true}),
	}
}

func mustBuild(t *testing.T, docs []document.Document) *Index {
	t.Helper()
	idx, err := Build(docs, Params{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func TestBuild_EmptyCorpus(t *testing.T) {
	_, err := Build(nil, Params{})
	if !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestBuild_DuplicateDocID(t *testing.T) {
	docs := []document.Document{
		makeDoc(t, "KB-0001", "a", "x", document.Attrs{}),
		makeDoc(t, "KB-0001", "b", "y", document.Attrs{}),
	}
	_, err := Build(docs, Params{})
	if !errors.Is(err, domain.ErrDuplicateDocID) {
		t.Fatalf("expected ErrDuplicateDocID, got %v", err)
	}
}

func TestSearch_RanksLexicalMatchFirst(t *testing.T) {
	idx := mustBuild(t, testCorpus(t))

	results := idx.Search("error E-4012", predicate.Predicate{}, 10)
	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.ID() == "KB-0003" {
			t.Error("billing doc has zero overlap with the query and must be excluded")
		}
	}
}

func TestSearch_ExcludesZeroScores(t *testing.T) {
	idx := mustBuild(t, testCorpus(t))

	results := idx.Search("zzzz qqqq", predicate.Predicate{}, 10)
	if len(results) != 0 {
		t.Fatalf("expected no results for non-matching query, got %d", len(results))
	}
}

func TestSearch_PredicateFiltersRegion(t *testing.T) {
	idx := mustBuild(t, testCorpus(t))

	region := "EU"
	pred, err := predicate.New(predicate.Spec{Region: &region})
	if err != nil {
		t.Fatalf("predicate.New: %v", err)
	}

	results := idx.Search("error E-4012", pred, 10)
	if len(results) == 0 {
		t.Fatal("expected results for EU query")
	}
	for _, r := range results {
		doc, ok := idx.Document(r.ID())
		if !ok {
			t.Fatalf("result %s missing from index", r.ID())
		}
		if doc.Region() != "EU" {
			t.Errorf("doc %s has region %s, want EU", r.ID(), doc.Region())
		}
	}
}

func TestSearch_DeprecatedTrap(t *testing.T) {
	idx := mustBuild(t, testCorpus(t))

	dep := false
	pred, err := predicate.New(predicate.Spec{Deprecated: &dep})
	if err != nil {
		t.Fatalf("predicate.New: %v", err)
	}

	// KB-0004 is the strongest lexical match for its own body text but is
	// deprecated; it must not appear anywhere in the filtered list.
	results := idx.Search("EU region session cache", pred, 10)
	for _, r := range results {
		if r.ID() == "KB-0004" {
			t.Error("deprecated doc leaked through deprecated=false predicate")
		}
	}
}

func TestSearch_EmptyPredicateIsNoOp(t *testing.T) {
	idx := mustBuild(t, testCorpus(t))

	unfiltered := idx.Search("session cache", predicate.Predicate{}, 10)
	empty, err := predicate.New(predicate.Spec{})
	if err != nil {
		t.Fatalf("predicate.New: %v", err)
	}
	filtered := idx.Search("session cache", empty, 10)

	if len(unfiltered) != len(filtered) {
		t.Fatalf("empty predicate changed result count: %d vs %d", len(unfiltered), len(filtered))
	}
	for i := range unfiltered {
		if unfiltered[i].ID() != filtered[i].ID() {
			t.Errorf("rank %d differs: %s vs %s", i, unfiltered[i].ID(), filtered[i].ID())
		}
	}
}

func TestSearch_TieBreakByDocID(t *testing.T) {
	docs := []document.Document{
		makeDoc(t, "KB-B", "token reset", "", document.Attrs{}),
		makeDoc(t, "KB-A", "token reset", "", document.Attrs{}),
	}
	idx := mustBuild(t, docs)

	results := idx.Search("token reset", predicate.Predicate{}, 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID() != "KB-A" {
		t.Errorf("equal scores must break ties by doc_id ascending, got %s first", results[0].ID())
	}
	if results[0].Score() != results[1].Score() {
		t.Errorf("identical docs should score identically: %f vs %f", results[0].Score(), results[1].Score())
	}
}

func TestSearch_TopKTruncation(t *testing.T) {
	idx := mustBuild(t, testCorpus(t))

	results := idx.Search("EU error cache", predicate.Predicate{}, 1)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestSearch_Deterministic(t *testing.T) {
	idx := mustBuild(t, testCorpus(t))

	first := idx.Search("error E-4012 EU cache", predicate.Predicate{}, 10)
	for run := 0; run < 5; run++ {
		again := idx.Search("error E-4012 EU cache", predicate.Predicate{}, 10)
		if len(again) != len(first) {
			t.Fatalf("run %d: length changed", run)
		}
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("run %d: rank %d differs", run, i)
			}
		}
	}
}

func TestBuild_DateRangePredicate(t *testing.T) {
	d2023 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	d2025 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := []document.Document{
		makeDoc(t, "KB-OLD", "cache tuning", "", document.Attrs{EffectiveDate: d2023}),
		makeDoc(t, "KB-NEW", "cache tuning", "", document.Attrs{EffectiveDate: d2025}),
	}
	idx := mustBuild(t, docs)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pred, err := predicate.New(predicate.Spec{DateFrom: &from})
	if err != nil {
		t.Fatalf("predicate.New: %v", err)
	}

	results := idx.Search("cache tuning", pred, 10)
	if len(results) != 1 || results[0].ID() != "KB-NEW" {
		t.Fatalf("expected only KB-NEW, got %v", results.IDs())
	}
}
