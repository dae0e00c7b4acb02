package taxonomy

import (
	"reflect"
	"testing"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	return NewMatcher(loadTestTaxonomy(t), 0)
}

func TestMatch_PluralAndSingularAgree(t *testing.T) {
	m := newTestMatcher(t)

	hikes := m.Match("hikes")
	hiking := m.Match("hiking")
	if !reflect.DeepEqual(hikes, hiking) {
		t.Fatalf("match(hikes)=%v, match(hiking)=%v", hikes, hiking)
	}
	if !reflect.DeepEqual(hiking, []string{"hiking"}) {
		t.Fatalf("match(hiking)=%v, want [hiking]", hiking)
	}
}

func TestMatch_CategoryExpansion(t *testing.T) {
	m := newTestMatcher(t)

	got := m.Match("outdoor activities")
	want := []string{"diving", "hiking", "kayaking", "snorkeling"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("match(outdoor activities)=%v, want %v", got, want)
	}

	// Bare category id expands the same way.
	if got := m.Match("outdoor"); !reflect.DeepEqual(got, want) {
		t.Fatalf("match(outdoor)=%v, want %v", got, want)
	}
}

func TestMatch_CommaSeparatedUnion(t *testing.T) {
	m := newTestMatcher(t)

	got := m.Match("snorkeling, wine tasting")
	want := []string{"snorkeling", "wine_tasting"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("match=%v, want %v", got, want)
	}
}

func TestMatch_FuzzyTypo(t *testing.T) {
	m := newTestMatcher(t)

	// One edit away from "snorkeling" (ratio 0.9).
	got := m.Match("snorkeing")
	if !reflect.DeepEqual(got, []string{"snorkeling"}) {
		t.Fatalf("match(snorkeing)=%v, want [snorkeling]", got)
	}
}

func TestMatch_NoMatchIsEmptyNotError(t *testing.T) {
	m := newTestMatcher(t)

	if got := m.Match("quantum chromodynamics"); len(got) != 0 {
		t.Fatalf("expected empty match, got %v", got)
	}
	if got := m.Match(""); len(got) != 0 {
		t.Fatalf("expected empty match for empty input, got %v", got)
	}
}

func TestMatch_WordFallbackForUnknownPhrase(t *testing.T) {
	m := newTestMatcher(t)

	// The whole phrase matches nothing, but one word does.
	got := m.Match("amazing snorkeling adventure")
	if !reflect.DeepEqual(got, []string{"snorkeling"}) {
		t.Fatalf("match=%v, want [snorkeling]", got)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	m := newTestMatcher(t)

	first := m.Match("outdoor activities, museums")
	for i := 0; i < 10; i++ {
		if got := m.Match("outdoor activities, museums"); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestSimilarity(t *testing.T) {
	if s := similarity("hiking", "hiking"); s != 1 {
		t.Errorf("identical strings: got %v", s)
	}
	if s := similarity("snorkeing", "snorkeling"); s < 0.8 {
		t.Errorf("one-edit typo should clear 0.8, got %v", s)
	}
	if s := similarity("spa", "museum"); s >= 0.8 {
		t.Errorf("unrelated strings should not clear 0.8, got %v", s)
	}
}
