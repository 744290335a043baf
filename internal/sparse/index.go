// Package sparse implements the in-process BM25 lexical index. The index is
// built once over the full corpus and is read-only afterwards, so it is safe
// to share across concurrent queries.
package sparse

import (
	"math"
	"sort"

	"github.com/clearhelm/kbsearch/internal/domain"
	"github.com/clearhelm/kbsearch/internal/domain/document"
	"github.com/clearhelm/kbsearch/internal/domain/predicate"
	"github.com/clearhelm/kbsearch/internal/domain/ranking"
)

// Default BM25 constants (Okapi BM25).
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Params holds the tunable BM25 scoring constants.
type Params struct {
	K1 float64
	B  float64
}

// Index is a BM25 index over the corpus text (title + body).
type Index struct {
	params    Params
	docs      []document.Document
	docsByID  map[string]int
	termFreqs []map[string]int // per-document term frequencies
	docFreqs  map[string]int   // number of documents containing each term
	docLens   []int
	avgDocLen float64
}

// Build tokenizes every document and constructs the term statistics needed
// for BM25 scoring. Duplicate doc_ids and an empty corpus fail fast.
func Build(docs []document.Document, params Params) (*Index, error) {
	if len(docs) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	if params.K1 <= 0 {
		params.K1 = DefaultK1
	}
	if params.B < 0 || params.B > 1 {
		params.B = DefaultB
	}

	idx := &Index{
		params:    params,
		docs:      docs,
		docsByID:  make(map[string]int, len(docs)),
		termFreqs: make([]map[string]int, len(docs)),
		docFreqs:  make(map[string]int),
		docLens:   make([]int, len(docs)),
	}

	totalLen := 0
	for i := range docs {
		id := docs[i].ID()
		if _, dup := idx.docsByID[id]; dup {
			return nil, domain.NewDuplicateDocID(id)
		}
		idx.docsByID[id] = i

		tokens := Tokenize(docs[i].Text())
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			idx.docFreqs[term]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)
	}
	idx.avgDocLen = float64(totalLen) / float64(len(docs))

	return idx, nil
}

// Search scores every document whose metadata satisfies the predicate against
// the query and returns the top-k ranked list. Documents with zero lexical
// overlap are excluded rather than ranked with ties at the bottom. Equal
// scores are broken by doc_id ascending for determinism.
func (idx *Index) Search(query string, pred predicate.Predicate, topK int) ranking.List {
	tokens := Tokenize(query)
	if len(tokens) == 0 || topK <= 0 {
		return nil
	}

	type hit struct {
		id    string
		score float64
	}
	hits := make([]hit, 0, len(idx.docs))

	for i := range idx.docs {
		if !pred.IsEmpty() && !pred.Matches(&idx.docs[i]) {
			continue
		}
		score := idx.score(tokens, i)
		if score > 0 {
			hits = append(hits, hit{id: idx.docs[i].ID(), score: score})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].id < hits[b].id
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make(ranking.List, len(hits))
	for i, h := range hits {
		out[i] = ranking.NewItem(h.id, h.score)
	}
	return out
}

// Document returns the indexed document with the given id.
func (idx *Index) Document(id string) (*document.Document, bool) {
	i, ok := idx.docsByID[id]
	if !ok {
		return nil, false
	}
	return &idx.docs[i], true
}

// Documents returns the indexed corpus in build order.
func (idx *Index) Documents() []document.Document { return idx.docs }

// Size returns the number of indexed documents.
func (idx *Index) Size() int { return len(idx.docs) }

// score computes the BM25 score of document i for the tokenized query.
func (idx *Index) score(queryTokens []string, i int) float64 {
	n := float64(len(idx.docs))
	tf := idx.termFreqs[i]
	dl := float64(idx.docLens[i])
	k1, b := idx.params.K1, idx.params.B

	var score float64
	for _, term := range queryTokens {
		freq, ok := tf[term]
		if !ok {
			continue
		}
		df := float64(idx.docFreqs[term])
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		f := float64(freq)
		norm := k1 * (1 - b + b*dl/idx.avgDocLen)
		score += idf * f * (k1 + 1) / (f + norm)
	}
	return score
}
