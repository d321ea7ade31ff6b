package policystore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryStore ranks documents by cosine similarity of word counts. It is a
// stand-in for local runs without Postgres; scores are comparable only to
// other MemoryStore scores.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []indexedDoc
}

type indexedDoc struct {
	doc   Document
	terms map[string]float64
	norm  float64
}

func NewMemoryStore(docs ...Document) *MemoryStore {
	s := &MemoryStore{}
	_, _ = s.Seed(context.Background(), docs)
	return s
}

func (s *MemoryStore) Seed(_ context.Context, docs []Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		terms := tokenize(d.Content)
		idx := indexedDoc{doc: d, terms: terms, norm: norm(terms)}
		replaced := false
		for i := range s.docs {
			if s.docs[i].doc.PolicyID == d.PolicyID {
				s.docs[i] = idx
				replaced = true
				break
			}
		}
		if !replaced {
			s.docs = append(s.docs, idx)
		}
	}
	return len(docs), nil
}

func (s *MemoryStore) SimilaritySearch(_ context.Context, term string, k int, minScore float64) ([]Match, error) {
	q := tokenize(term)
	qn := norm(q)
	if qn == 0 || k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	var matches []Match
	for _, d := range s.docs {
		if d.norm == 0 {
			continue
		}
		var dot float64
		for t, w := range q {
			dot += w * d.terms[t]
		}
		score := dot / (qn * d.norm)
		if score >= minScore {
			matches = append(matches, Match{Document: d.doc, Score: score})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func tokenize(s string) map[string]float64 {
	terms := make(map[string]float64)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) > 2 {
			terms[w]++
		}
	}
	return terms
}

func norm(terms map[string]float64) float64 {
	var sum float64
	for _, w := range terms {
		sum += w * w
	}
	return math.Sqrt(sum)
}
