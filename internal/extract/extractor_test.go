package extract

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/taxonomy"
)

const extractTaxonomyYAML = `
activities:
  snorkeling:
    synonyms: [snorkel, snorkelling]
  wine_tasting:
    synonyms: [wine tasting, wine tour]
  hiking:
    synonyms: [hike]
  city_tours:
    synonyms: [city tour]
`

func newTestTaxonomy(t *testing.T) (*taxonomy.Taxonomy, *taxonomy.Matcher) {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(extractTaxonomyYAML))
	if err != nil {
		t.Fatalf("parse taxonomy: %v", err)
	}
	return tax, taxonomy.NewMatcher(tax, 0)
}

type fakeCompleter struct {
	calls    int
	response string
	err      error
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestExtract_LLMPath(t *testing.T) {
	tax, matcher := newTestTaxonomy(t)
	completer := &fakeCompleter{
		response: `{"city": "Lisbon", "country": "Portugal", "activities": ["snorkelling", "city tour"], "price_tier": "moderate"}`,
	}
	e := New(completer, tax, matcher, Options{Timeout: time.Second})

	fields := e.Extract(context.Background(), "Lisbon Coastal Escape", "Snorkel the Atlantic coves.")

	want := domain.StructuredFields{
		City:       "Lisbon",
		Country:    "Portugal",
		Activities: []string{"city_tours", "snorkeling"},
		PriceTier:  domain.PriceTierModerate,
	}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("fields = %+v, want %+v", fields, want)
	}
}

func TestExtract_FallsBackToTaxonomyScan(t *testing.T) {
	tax, matcher := newTestTaxonomy(t)
	completer := &fakeCompleter{err: errors.New("connection refused")}
	e := New(completer, tax, matcher, Options{Timeout: time.Second})

	fields := e.Extract(context.Background(), "Tuscan Vineyards",
		"A week of wine tasting and gentle hiking between hilltop villages.")

	if !fields.Partial {
		t.Fatal("heuristic extraction must be marked partial")
	}
	want := []string{"hiking", "wine_tasting"}
	if !reflect.DeepEqual(fields.Activities, want) {
		t.Fatalf("activities = %v, want %v", fields.Activities, want)
	}
	if fields.City != "" || fields.Country != "" {
		t.Fatalf("heuristic path must not invent location fields: %+v", fields)
	}
}

func TestExtract_BreakerStopsCallingProvider(t *testing.T) {
	tax, matcher := newTestTaxonomy(t)
	completer := &fakeCompleter{err: errors.New("connection refused")}
	e := New(completer, tax, matcher, Options{
		Timeout:          time.Second,
		BreakerThreshold: 3,
		BreakerCooldown:  time.Minute,
	})

	for i := 0; i < 10; i++ {
		e.Extract(context.Background(), "doc", "wine tasting in the hills")
	}

	// Each extraction makes at most two provider calls (one retry). Once the
	// breaker opens after 3 consecutive failures, calls stop reaching the
	// provider entirely.
	if completer.calls > 4 {
		t.Fatalf("provider called %d times after breaker should have opened", completer.calls)
	}
	if completer.calls < 3 {
		t.Fatalf("provider called only %d times, breaker opened too early", completer.calls)
	}
}

func TestExtract_MalformedResponseFallsBack(t *testing.T) {
	tax, matcher := newTestTaxonomy(t)
	completer := &fakeCompleter{response: "I could not find any activities."}
	e := New(completer, tax, matcher, Options{Timeout: time.Second})

	fields := e.Extract(context.Background(), "Hiking in Iceland", "Guided hike across lava fields.")
	if !fields.Partial {
		t.Fatal("expected partial fields after malformed response")
	}
	if !reflect.DeepEqual(fields.Activities, []string{"hiking"}) {
		t.Fatalf("activities = %v, want [hiking]", fields.Activities)
	}
}
