package search

import (
	"math"
	"reflect"
	"testing"

	"github.com/voyago/tripdex/internal/domain"
)

func lexList(ids ...string) []domain.RankedEntry {
	entries := make([]domain.RankedEntry, len(ids))
	for i, id := range ids {
		entries[i] = domain.RankedEntry{DocID: id, Source: domain.SourceLexical, Rank: i + 1, RawScore: float64(len(ids) - i)}
	}
	return entries
}

func vecList(ids ...string) []domain.RankedEntry {
	entries := make([]domain.RankedEntry, len(ids))
	for i, id := range ids {
		entries[i] = domain.RankedEntry{DocID: id, Source: domain.SourceVector, Rank: i + 1, RawScore: 1 - float64(i)*0.1}
	}
	return entries
}

func fusedIDs(results []domain.FusedResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func TestFuse_ScoreFormula(t *testing.T) {
	results := Fuse([][]domain.RankedEntry{
		lexList("a", "b"),
		vecList("a"),
	}, 60, 10)

	if results[0].DocID != "a" {
		t.Fatalf("top doc = %s, want a", results[0].DocID)
	}
	// a: 1/61 from both lists; b: 1/62 from one.
	wantA := 2.0 / 61.0
	if math.Abs(results[0].FusedScore-wantA) > 1e-12 {
		t.Fatalf("score(a) = %v, want %v", results[0].FusedScore, wantA)
	}
	wantB := 1.0 / 62.0
	if math.Abs(results[1].FusedScore-wantB) > 1e-12 {
		t.Fatalf("score(b) = %v, want %v", results[1].FusedScore, wantB)
	}
	if len(results[0].Sources) != 2 {
		t.Fatalf("sources(a) = %v, want both", results[0].Sources)
	}
}

func TestFuse_BothListsOutrankSingle(t *testing.T) {
	// c is rank 1 in one list; a is rank 2 in both. 2/62 > 1/61.
	results := Fuse([][]domain.RankedEntry{
		lexList("c", "a"),
		vecList("d", "a"),
	}, 60, 10)

	if results[0].DocID != "a" {
		t.Fatalf("top doc = %s, want a (present in both lists)", results[0].DocID)
	}
}

func TestFuse_TieBreaksOnDocID(t *testing.T) {
	// b and a each appear once at rank 1, same score and source count.
	results := Fuse([][]domain.RankedEntry{
		lexList("b"),
		vecList("a"),
	}, 60, 10)

	if got := fusedIDs(results); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("order = %v, want [a b]", got)
	}
}

func TestFuse_Deterministic(t *testing.T) {
	lists := [][]domain.RankedEntry{
		lexList("a", "b", "c", "d"),
		vecList("c", "a", "e"),
	}
	first := Fuse(lists, 60, 10)
	for i := 0; i < 50; i++ {
		if got := Fuse(lists, 60, 10); !reflect.DeepEqual(got, first) {
			t.Fatalf("fusion is not deterministic: %v vs %v", got, first)
		}
	}
}

func TestFuse_SingleListPreservesOrder(t *testing.T) {
	results := Fuse([][]domain.RankedEntry{lexList("x", "y", "z")}, 60, 10)
	if got := fusedIDs(results); !reflect.DeepEqual(got, []string{"x", "y", "z"}) {
		t.Fatalf("order = %v, want [x y z]", got)
	}
}

func TestFuse_Truncates(t *testing.T) {
	results := Fuse([][]domain.RankedEntry{lexList("a", "b", "c", "d", "e")}, 60, 2)
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
}

func TestFuse_EmptyInput(t *testing.T) {
	if results := Fuse(nil, 60, 10); len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
	if results := Fuse([][]domain.RankedEntry{{}, {}}, 60, 10); len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
}
