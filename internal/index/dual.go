// Package index ties the lexical and vector indexes together behind one
// facade so that a document removal is atomic with respect to searches: a
// query never observes a document present in one index and gone from the
// other.
package index

import (
	"fmt"
	"sync"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/index/lexical"
	"github.com/voyago/tripdex/internal/index/vector"
)

// Dual replicates each document into both indexes. Searches and upserts take
// the read side of the facade lock (both indexes are internally thread-safe,
// and per-document write serialization belongs to the indexing pipeline);
// deletes take the write side so no search interleaves a half-removed state.
type Dual struct {
	mu  sync.RWMutex
	lex *lexical.Index
	vec *vector.Index
}

// NewDual creates the facade over freshly shared indexes.
func NewDual(lex *lexical.Index, vec *vector.Index) *Dual {
	return &Dual{lex: lex, vec: vec}
}

// Upsert writes the document into both indexes. The embedding dimension is
// validated up front so a rejected document never lands in only one index.
func (d *Dual) Upsert(doc domain.Document) error {
	if len(doc.Embedding) != d.vec.Dimension() {
		return fmt.Errorf("%w: doc %s has %d, index expects %d",
			domain.ErrEmbeddingDimMismatch, doc.ID, len(doc.Embedding), d.vec.Dimension())
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	d.lex.Upsert(doc)
	if err := d.vec.Upsert(doc); err != nil {
		// Dimension was validated above; anything else here means the two
		// indexes diverged and must not be served.
		d.lex.Delete(doc.ID)
		return err
	}
	return nil
}

// Delete removes the document from both indexes atomically w.r.t. searches.
// Returns false when the ID is unknown.
func (d *Dual) Delete(docID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	inLex := d.lex.Delete(docID)
	inVec := d.vec.Delete(docID)
	return inLex || inVec
}

// SearchLexical runs a BM25 search over the lexical index.
func (d *Dual) SearchLexical(queryText string, filter domain.StructuredFilter, limit int) ([]domain.RankedEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lex.Search(queryText, filter, limit), nil
}

// SearchVector runs a cosine top-k search over the vector index.
func (d *Dual) SearchVector(queryEmbedding []float32, filter domain.StructuredFilter, limit int) ([]domain.RankedEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vec.Search(queryEmbedding, filter, limit)
}

// Document returns the stored copy of a document.
func (d *Dual) Document(docID string) (domain.Document, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lex.Document(docID)
}

// Len returns the number of indexed documents.
func (d *Dual) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lex.Len()
}

// Verify checks that both indexes hold exactly the same document set. A
// divergence means the indexes are corrupt; the caller must refuse to serve
// and rebuild.
func (d *Dual) Verify() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	lexIDs := d.lex.DocIDs()
	vecIDs := d.vec.DocIDs()
	if len(lexIDs) != len(vecIDs) {
		return fmt.Errorf("%w: lexical has %d documents, vector has %d",
			domain.ErrIndexInconsistent, len(lexIDs), len(vecIDs))
	}
	for i := range lexIDs {
		if lexIDs[i] != vecIDs[i] {
			return fmt.Errorf("%w: mismatch at %q vs %q",
				domain.ErrIndexInconsistent, lexIDs[i], vecIDs[i])
		}
	}
	return nil
}
