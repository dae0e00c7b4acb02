// Package vector implements an in-process nearest-neighbor index with exact
// cosine-similarity top-k and incremental per-document upsert/delete.
package vector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/viant/vec/search"

	"github.com/voyago/tripdex/internal/domain"
)

type entry struct {
	doc       domain.Document
	magnitude float32
}

// Index is a thread-safe exact-scan cosine index over fixed-dimension
// embeddings. The corpus sizes this serves do not warrant an approximate
// structure; exact scan keeps top-k observably correct.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]*entry
}

// New creates an index for embeddings of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim, entries: make(map[string]*entry)}
}

// Dimension returns the fixed embedding dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Upsert stores the document's embedding, replacing any previous one.
func (ix *Index) Upsert(doc domain.Document) error {
	if len(doc.Embedding) != ix.dim {
		return fmt.Errorf("%w: doc %s has %d, index expects %d",
			domain.ErrEmbeddingDimMismatch, doc.ID, len(doc.Embedding), ix.dim)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[doc.ID] = &entry{
		doc:       doc,
		magnitude: search.Float32s(doc.Embedding).Magnitude(),
	}
	return nil
}

// Delete removes a document. Returns false when the ID is unknown.
func (ix *Index) Delete(docID string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.entries[docID]; !ok {
		return false
	}
	delete(ix.entries, docID)
	return true
}

// Len returns the number of stored embeddings.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// DocIDs returns all stored document IDs, sorted.
func (ix *Index) DocIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.entries))
	for id := range ix.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Search returns the top-limit documents by cosine similarity to the query
// embedding, after applying the structured filter as a pre-filter. Ties are
// broken by ascending doc ID.
func (ix *Index) Search(queryEmbedding []float32, filter domain.StructuredFilter, limit int) ([]domain.RankedEntry, error) {
	if len(queryEmbedding) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index expects %d",
			domain.ErrEmbeddingDimMismatch, len(queryEmbedding), ix.dim)
	}
	if limit <= 0 {
		return nil, nil
	}

	q := search.Float32s(queryEmbedding)
	qMag := q.Magnitude()

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type hit struct {
		docID string
		sim   float64
	}
	hits := make([]hit, 0, len(ix.entries))
	for id, e := range ix.entries {
		if !filter.Matches(e.doc.Fields) {
			continue
		}
		sim := 0.0
		if qMag > 0 && e.magnitude > 0 {
			sim = 1 - float64(q.CosineDistanceWithMagnitudesNeon(e.doc.Embedding, qMag, e.magnitude))
		}
		hits = append(hits, hit{docID: id, sim: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
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
			Source:   domain.SourceVector,
			Rank:     i + 1,
			RawScore: h.sim,
		}
	}
	return entries, nil
}
