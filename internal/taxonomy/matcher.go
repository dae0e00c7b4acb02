package taxonomy

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultFuzzyThreshold is the similarity a fuzzy candidate must reach on a
// 0-1 normalized edit-distance scale.
const DefaultFuzzyThreshold = 0.8

// Matcher maps free text onto canonical activity ids. It is read-only over
// the taxonomy and safe for concurrent use.
type Matcher struct {
	tax       *Taxonomy
	threshold float64
}

// NewMatcher creates a matcher. threshold <= 0 selects DefaultFuzzyThreshold.
func NewMatcher(tax *Taxonomy, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{tax: tax, threshold: threshold}
}

// Match returns the sorted canonical activity set for free text. Phrases are
// split on commas and matched independently; a phrase that matches a category
// expands to the category's full member set. An empty result is a valid,
// non-exceptional outcome.
func (m *Matcher) Match(text string) []string {
	seen := make(map[string]struct{})
	for _, phrase := range strings.Split(text, ",") {
		for _, id := range m.matchPhrase(phrase, true) {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// matchPhrase resolves one phrase: exact synonym, category, singular/plural
// variant, then fuzzy comparison against all keys. A multi-word phrase that
// matches nothing falls back to per-word matching.
func (m *Matcher) matchPhrase(phrase string, wordFallback bool) []string {
	norm := Normalize(phrase)
	if norm == "" {
		return nil
	}

	if id, ok := m.tax.Canonical(norm); ok {
		return []string{id}
	}
	if members, ok := m.tax.CategoryMembers(norm); ok {
		return members
	}

	for _, v := range pluralVariants(norm) {
		if id, ok := m.tax.Canonical(v); ok {
			return []string{id}
		}
		if members, ok := m.tax.CategoryMembers(v); ok {
			return members
		}
	}

	if ids := m.fuzzy(norm); len(ids) > 0 {
		return ids
	}

	if wordFallback && strings.ContainsRune(norm, ' ') {
		var ids []string
		for _, word := range strings.Fields(norm) {
			ids = append(ids, m.matchPhrase(word, false)...)
		}
		return ids
	}

	return nil
}

// fuzzy unions the canonical sets of every synonym and category key whose
// similarity to norm clears the threshold.
func (m *Matcher) fuzzy(norm string) []string {
	seen := make(map[string]struct{})
	for _, key := range m.tax.SynonymKeys() {
		if similarity(norm, key) >= m.threshold {
			if id, ok := m.tax.Canonical(key); ok {
				seen[id] = struct{}{}
			}
		}
	}
	for _, key := range m.tax.CategoryKeys() {
		if similarity(norm, key) >= m.threshold {
			members, _ := m.tax.CategoryMembers(key)
			for _, id := range members {
				seen[id] = struct{}{}
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// pluralVariants generates singular/plural forms of the phrase's last word.
func pluralVariants(norm string) []string {
	words := strings.Fields(norm)
	if len(words) == 0 {
		return nil
	}
	last := words[len(words)-1]
	prefix := strings.Join(words[:len(words)-1], " ")

	var forms []string
	switch {
	case strings.HasSuffix(last, "es") && len(last) > 3:
		forms = append(forms, last[:len(last)-2], last[:len(last)-1])
	case strings.HasSuffix(last, "s") && len(last) > 2:
		forms = append(forms, last[:len(last)-1])
	default:
		forms = append(forms, last+"s", last+"es")
	}

	variants := make([]string, 0, len(forms))
	for _, f := range forms {
		if prefix != "" {
			variants = append(variants, prefix+" "+f)
		} else {
			variants = append(variants, f)
		}
	}
	return variants
}

// similarity is 1 - editDistance/maxLen on rune counts.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
