package index

import (
	"errors"
	"testing"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/index/lexical"
	"github.com/voyago/tripdex/internal/index/vector"
)

func newTestDual() *Dual {
	return NewDual(lexical.New(), vector.New(2))
}

func dualDoc(id, title string, emb []float32) domain.Document {
	return domain.Document{ID: id, Title: title, Body: title + " description", Embedding: emb}
}

func TestDual_UpsertReachesBothIndexes(t *testing.T) {
	d := newTestDual()
	if err := d.Upsert(dualDoc("d1", "snorkeling", []float32{1, 0})); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	lexHits, err := d.SearchLexical("snorkeling", domain.StructuredFilter{}, 10)
	if err != nil || len(lexHits) != 1 {
		t.Fatalf("lexical hits = %v, err = %v", lexHits, err)
	}
	vecHits, err := d.SearchVector([]float32{1, 0}, domain.StructuredFilter{}, 10)
	if err != nil || len(vecHits) != 1 {
		t.Fatalf("vector hits = %v, err = %v", vecHits, err)
	}
}

func TestDual_DeleteRemovesFromBoth(t *testing.T) {
	d := newTestDual()
	if err := d.Upsert(dualDoc("d1", "snorkeling", []float32{1, 0})); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if !d.Delete("d1") {
		t.Fatal("delete returned false")
	}

	lexHits, _ := d.SearchLexical("snorkeling", domain.StructuredFilter{}, 10)
	vecHits, _ := d.SearchVector([]float32{1, 0}, domain.StructuredFilter{}, 10)
	if len(lexHits) != 0 || len(vecHits) != 0 {
		t.Fatalf("document survived delete: lex=%v vec=%v", lexHits, vecHits)
	}
	if err := d.Verify(); err != nil {
		t.Fatalf("indexes diverged after delete: %v", err)
	}
	if d.Delete("d1") {
		t.Fatal("second delete should return false")
	}
}

func TestDual_RejectsWrongDimensionBeforeAnyWrite(t *testing.T) {
	d := newTestDual()
	err := d.Upsert(dualDoc("d1", "snorkeling", []float32{1, 0, 0}))
	if !errors.Is(err, domain.ErrEmbeddingDimMismatch) {
		t.Fatalf("expected ErrEmbeddingDimMismatch, got %v", err)
	}

	lexHits, _ := d.SearchLexical("snorkeling", domain.StructuredFilter{}, 10)
	if len(lexHits) != 0 {
		t.Fatalf("rejected document leaked into lexical index: %v", lexHits)
	}
	if err := d.Verify(); err != nil {
		t.Fatalf("verify after rejected upsert: %v", err)
	}
}

func TestDual_VerifyDetectsDivergence(t *testing.T) {
	lex := lexical.New()
	vec := vector.New(2)
	d := NewDual(lex, vec)

	// Simulate corruption by writing past the facade.
	lex.Upsert(domain.Document{ID: "only-lex", Title: "x", Body: "y"})

	err := d.Verify()
	if !errors.Is(err, domain.ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
}
