package domain

import (
	"fmt"
	"strings"
)

// PriceTier is the coarse price classification of a destination or guide.
type PriceTier string

const (
	PriceTierBudget   PriceTier = "budget"
	PriceTierModerate PriceTier = "moderate"
	PriceTierLuxury   PriceTier = "luxury"
)

// ParsePriceTier parses a price tier string. Empty input is valid (unknown tier).
func ParsePriceTier(s string) (PriceTier, error) {
	switch t := PriceTier(strings.ToLower(strings.TrimSpace(s))); t {
	case "", PriceTierBudget, PriceTierModerate, PriceTierLuxury:
		return t, nil
	default:
		return "", fmt.Errorf("unknown price tier %q", s)
	}
}

// StructuredFields are the fields extracted from a document at indexing time.
type StructuredFields struct {
	City       string
	Country    string
	Activities []string // canonical activity ids, sorted
	PriceTier  PriceTier

	// Partial marks fields produced by the heuristic fallback path
	// (no city/country, keyword-scan activities only).
	Partial bool
}

// Document is the authoritative per-ID copy replicated into both indexes.
type Document struct {
	ID     string
	Title  string
	Body   string
	Fields StructuredFields

	// Embedding has the fixed dimension of the vector index.
	Embedding []float32
}

// SearchText is the text the lexical index scores with BM25.
func (d *Document) SearchText() string {
	return d.Title + " " + d.Body
}

// EmbeddingText is the text representation sent to the embedding provider.
// Activities are appended so semantically tagged documents embed close to
// activity-phrased queries.
func (d *Document) EmbeddingText() string {
	parts := []string{d.Title, d.Body}
	if d.Fields.City != "" {
		parts = append(parts, d.Fields.City)
	}
	if d.Fields.Country != "" {
		parts = append(parts, d.Fields.Country)
	}
	if len(d.Fields.Activities) > 0 {
		parts = append(parts, strings.Join(d.Fields.Activities, ", "))
	}
	return strings.Join(parts, " ")
}
