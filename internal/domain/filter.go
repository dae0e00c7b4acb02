package domain

import "strings"

// StructuredFilter is the typed representation of a query's constraints.
// Zero values mean unconstrained; it is produced per query and never persisted.
type StructuredFilter struct {
	City       string
	Country    string
	Activities []string // canonical activity ids
}

// IsEmpty reports whether the filter constrains nothing.
func (f StructuredFilter) IsEmpty() bool {
	return f.City == "" && f.Country == "" && len(f.Activities) == 0
}

// Matches reports whether a document's structured fields satisfy the filter.
// City and country are exact-match constraints; a non-empty activity set
// requires a non-empty intersection with the document's activities.
func (f StructuredFilter) Matches(fields StructuredFields) bool {
	if f.City != "" && !strings.EqualFold(f.City, fields.City) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(f.Country, fields.Country) {
		return false
	}
	if len(f.Activities) > 0 {
		if !intersects(f.Activities, fields.Activities) {
			return false
		}
	}
	return true
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
