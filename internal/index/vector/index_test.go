package vector

import (
	"errors"
	"testing"

	"github.com/voyago/tripdex/internal/domain"
)

func vecDoc(id string, emb []float32, fields domain.StructuredFields) domain.Document {
	return domain.Document{ID: id, Embedding: emb, Fields: fields}
}

func TestSearch_OrdersByCosineSimilarity(t *testing.T) {
	ix := New(3)
	mustUpsert(t, ix, vecDoc("far", []float32{0, 1, 0}, domain.StructuredFields{}))
	mustUpsert(t, ix, vecDoc("near", []float32{1, 0.1, 0}, domain.StructuredFields{}))
	mustUpsert(t, ix, vecDoc("exact", []float32{2, 0, 0}, domain.StructuredFields{}))

	entries, err := ix.Search([]float32{1, 0, 0}, domain.StructuredFilter{}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(entries))
	}
	if entries[0].DocID != "exact" || entries[1].DocID != "near" || entries[2].DocID != "far" {
		t.Fatalf("wrong order: %v", entries)
	}
	if entries[0].RawScore < 0.999 {
		t.Errorf("parallel vectors should have similarity ~1, got %f", entries[0].RawScore)
	}
	for i, e := range entries {
		if e.Rank != i+1 || e.Source != domain.SourceVector {
			t.Errorf("entry %d malformed: %+v", i, e)
		}
	}
}

func TestSearch_FilterApplied(t *testing.T) {
	ix := New(2)
	mustUpsert(t, ix, vecDoc("pt", []float32{1, 0},
		domain.StructuredFields{Country: "Portugal", Activities: []string{"snorkeling"}}))
	mustUpsert(t, ix, vecDoc("it", []float32{1, 0},
		domain.StructuredFields{Country: "Italy", Activities: []string{"wine_tasting"}}))

	entries, err := ix.Search([]float32{1, 0}, domain.StructuredFilter{Country: "Italy"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].DocID != "it" {
		t.Fatalf("expected only it, got %v", entries)
	}

	entries, err = ix.Search([]float32{1, 0}, domain.StructuredFilter{Activities: []string{"snorkeling"}}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].DocID != "pt" {
		t.Fatalf("expected only pt, got %v", entries)
	}
}

func TestSearch_TieBrokenByDocID(t *testing.T) {
	ix := New(2)
	mustUpsert(t, ix, vecDoc("b", []float32{1, 0}, domain.StructuredFields{}))
	mustUpsert(t, ix, vecDoc("a", []float32{2, 0}, domain.StructuredFields{}))

	entries, err := ix.Search([]float32{1, 0}, domain.StructuredFilter{}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if entries[0].DocID != "a" || entries[1].DocID != "b" {
		t.Fatalf("tie not broken by ascending doc id: %v", entries)
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	ix := New(3)
	err := ix.Upsert(vecDoc("d", []float32{1, 0}, domain.StructuredFields{}))
	if !errors.Is(err, domain.ErrEmbeddingDimMismatch) {
		t.Fatalf("expected ErrEmbeddingDimMismatch, got %v", err)
	}

	_, err = ix.Search([]float32{1, 0}, domain.StructuredFilter{}, 10)
	if !errors.Is(err, domain.ErrEmbeddingDimMismatch) {
		t.Fatalf("expected ErrEmbeddingDimMismatch from search, got %v", err)
	}
}

func TestDeleteAndLimit(t *testing.T) {
	ix := New(2)
	mustUpsert(t, ix, vecDoc("a", []float32{1, 0}, domain.StructuredFields{}))
	mustUpsert(t, ix, vecDoc("b", []float32{0.9, 0.1}, domain.StructuredFields{}))

	if !ix.Delete("a") {
		t.Fatal("delete returned false for known doc")
	}
	if ix.Delete("a") {
		t.Fatal("delete returned true for removed doc")
	}

	entries, err := ix.Search([]float32{1, 0}, domain.StructuredFilter{}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].DocID != "b" {
		t.Fatalf("expected only b, got %v", entries)
	}
}

func TestSearch_ZeroVectorScoresZero(t *testing.T) {
	ix := New(2)
	mustUpsert(t, ix, vecDoc("zero", []float32{0, 0}, domain.StructuredFields{}))

	entries, err := ix.Search([]float32{1, 0}, domain.StructuredFilter{}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(entries) != 1 || entries[0].RawScore != 0 {
		t.Fatalf("zero-magnitude doc should score 0, got %v", entries)
	}
}

func mustUpsert(t *testing.T, ix *Index, doc domain.Document) {
	t.Helper()
	if err := ix.Upsert(doc); err != nil {
		t.Fatalf("upsert %s: %v", doc.ID, err)
	}
}
