package rewrite

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/voyago/tripdex/internal/domain"
	"github.com/voyago/tripdex/internal/taxonomy"
)

const rewriteTaxonomyYAML = `
activities:
  snorkeling:
    synonyms: [snorkel]
  hiking:
    synonyms: [hike, trekking]
  wine_tasting:
    synonyms: [wine tasting, wine tour]
  kayaking:
    synonyms: [kayak]
categories:
  outdoor:
    aliases: [outdoor activities]
    members: [snorkeling, hiking, kayaking]
`

func newTestMatcher(t *testing.T) *taxonomy.Matcher {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(rewriteTaxonomyYAML))
	if err != nil {
		t.Fatalf("parse taxonomy: %v", err)
	}
	return taxonomy.NewMatcher(tax, 0)
}

// scriptedCompleter returns its responses in order, then repeats the last.
type scriptedCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedCompleter) Complete(context.Context, string) (string, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	if s.errs != nil && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.responses[i], nil
}

func TestRewrite_StructuredQuery(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"city": null, "country": "Italy", "activities": ["wine tasting"]}`,
	}}
	r := New(completer, newTestMatcher(t), time.Second, nil)

	filter, degraded := r.Rewrite(context.Background(), "Wine tasting in Tuscany")
	if degraded {
		t.Fatal("unexpected degraded rewrite")
	}
	want := domain.StructuredFilter{Country: "Italy", Activities: []string{"wine_tasting"}}
	if !reflect.DeepEqual(filter, want) {
		t.Fatalf("filter = %+v, want %+v", filter, want)
	}
}

func TestRewrite_CategoryExpandsToMembers(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"city": null, "country": "Portugal", "activities": ["outdoor activities"]}`,
	}}
	r := New(completer, newTestMatcher(t), time.Second, nil)

	filter, degraded := r.Rewrite(context.Background(), "outdoor activities in Portugal")
	if degraded {
		t.Fatal("unexpected degraded rewrite")
	}
	want := []string{"hiking", "kayaking", "snorkeling"}
	if !reflect.DeepEqual(filter.Activities, want) {
		t.Fatalf("activities = %v, want %v", filter.Activities, want)
	}
}

func TestRewrite_RetriesOnceOnMalformedJSON(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`not json at all`,
		"```json\n{\"city\": \"Lisbon\", \"country\": \"null\", \"activities\": [\"snorkel\"]}\n```",
	}}
	r := New(completer, newTestMatcher(t), time.Second, nil)

	filter, degraded := r.Rewrite(context.Background(), "Snorkeling near Lisbon")
	if degraded {
		t.Fatal("retry should have recovered")
	}
	if completer.calls != 2 {
		t.Fatalf("completer called %d times, want 2", completer.calls)
	}
	want := domain.StructuredFilter{City: "Lisbon", Activities: []string{"snorkeling"}}
	if !reflect.DeepEqual(filter, want) {
		t.Fatalf("filter = %+v, want %+v", filter, want)
	}
}

func TestRewrite_DegradesWhenProviderFails(t *testing.T) {
	providerErr := errors.New("connection refused")
	completer := &scriptedCompleter{
		responses: []string{"", ""},
		errs:      []error{providerErr, providerErr},
	}
	r := New(completer, newTestMatcher(t), time.Second, nil)

	filter, degraded := r.Rewrite(context.Background(), "hiking in Iceland")
	if !degraded {
		t.Fatal("expected degraded rewrite")
	}
	if !filter.IsEmpty() {
		t.Fatalf("expected empty filter, got %+v", filter)
	}
}

func TestRewrite_UnmatchedActivitiesDropped(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"city": null, "country": null, "activities": ["base jumping", "hiking"]}`,
	}}
	r := New(completer, newTestMatcher(t), time.Second, nil)

	filter, _ := r.Rewrite(context.Background(), "base jumping and hiking")
	if !reflect.DeepEqual(filter.Activities, []string{"hiking"}) {
		t.Fatalf("activities = %v, want [hiking]", filter.Activities)
	}
}
