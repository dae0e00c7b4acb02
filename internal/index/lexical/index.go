// Package lexical implements an in-process inverted index with BM25 scoring
// and incremental per-document upsert/delete.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/voyago/tripdex/internal/domain"
)

// Canonical BM25 constants.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type docEntry struct {
	doc    domain.Document
	length int            // token count of the indexed text
	terms  map[string]int // term -> frequency
}

// Index is a thread-safe incremental BM25 index. Document text plus the
// structured fields (city, country, activities) are indexed; BM25 parameters
// are fixed at construction.
type Index struct {
	mu       sync.RWMutex
	k1, b    float64
	docs     map[string]*docEntry
	postings map[string]map[string]int // term -> docID -> tf
	totalLen int
}

// New creates an index with the canonical k1/b defaults.
func New() *Index {
	return NewWithParams(DefaultK1, DefaultB)
}

// NewWithParams creates an index with explicit BM25 constants.
func NewWithParams(k1, b float64) *Index {
	return &Index{
		k1:       k1,
		b:        b,
		docs:     make(map[string]*docEntry),
		postings: make(map[string]map[string]int),
	}
}

// Upsert replaces the document under its ID, updating postings incrementally.
func (ix *Index) Upsert(doc domain.Document) {
	terms := termFrequencies(indexText(&doc))
	length := 0
	for _, tf := range terms {
		length += tf
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(doc.ID)

	entry := &docEntry{doc: doc, length: length, terms: terms}
	ix.docs[doc.ID] = entry
	ix.totalLen += length
	for term, tf := range terms {
		posting := ix.postings[term]
		if posting == nil {
			posting = make(map[string]int)
			ix.postings[term] = posting
		}
		posting[doc.ID] = tf
	}
}

// Delete removes a document. Returns false when the ID is unknown.
func (ix *Index) Delete(docID string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(docID)
}

func (ix *Index) removeLocked(docID string) bool {
	entry, ok := ix.docs[docID]
	if !ok {
		return false
	}
	for term := range entry.terms {
		posting := ix.postings[term]
		delete(posting, docID)
		if len(posting) == 0 {
			delete(ix.postings, term)
		}
	}
	ix.totalLen -= entry.length
	delete(ix.docs, docID)
	return true
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// DocIDs returns all indexed document IDs, sorted.
func (ix *Index) DocIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.docs))
	for id := range ix.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Document returns the stored copy of a document.
func (ix *Index) Document(docID string) (domain.Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	entry, ok := ix.docs[docID]
	if !ok {
		return domain.Document{}, false
	}
	return entry.doc, true
}

// Search scores documents matching the filter with BM25 over the query terms.
// Results are ordered by score descending, ties broken by ascending doc ID,
// and truncated to limit.
func (ix *Index) Search(queryText string, filter domain.StructuredFilter, limit int) []domain.RankedEntry {
	terms := Tokenize(queryText)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(ix.totalLen) / float64(n)

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := ix.postings[term]
		if !ok {
			continue
		}
		df := len(posting)
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		for docID, tf := range posting {
			entry := ix.docs[docID]
			norm := 1 - ix.b + ix.b*float64(entry.length)/avgLen
			scores[docID] += idf * float64(tf) * (ix.k1 + 1) / (float64(tf) + ix.k1*norm)
		}
	}

	type hit struct {
		docID string
		score float64
	}
	hits := make([]hit, 0, len(scores))
	for docID, score := range scores {
		if !filter.Matches(ix.docs[docID].doc.Fields) {
			continue
		}
		hits = append(hits, hit{docID: docID, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].docID < hits[j].docID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	entries := make([]domain.RankedEntry, len(hits))
	for i, h := range hits {
		entries[i] = domain.RankedEntry{
			DocID:    h.docID,
			Source:   domain.SourceLexical,
			Rank:     i + 1,
			RawScore: h.score,
		}
	}
	return entries
}

// indexText combines the searchable text with the structured fields so that
// city, country, and activity terms are retrievable lexically.
func indexText(doc *domain.Document) string {
	parts := []string{doc.SearchText(), doc.Fields.City, doc.Fields.Country}
	parts = append(parts, doc.Fields.Activities...)
	return strings.Join(parts, " ")
}

// Tokenize lowercases and splits on non-alphanumeric runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termFrequencies(text string) map[string]int {
	terms := make(map[string]int)
	for _, tok := range Tokenize(text) {
		terms[tok]++
	}
	return terms
}
