package tripdex

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"testing"
)

const testTaxonomy = `
activities:
  snorkeling:
    synonyms: [snorkel, snorkelling]
  wine_tasting:
    synonyms: [wine tasting]
  hiking:
    synonyms: [hike, trekking]
categories:
  outdoor:
    aliases: [outdoor activities]
    members: [snorkeling, hiking]
`

// jsonCompleter answers extraction and rewrite prompts from the text itself,
// so tests run without a provider.
type jsonCompleter struct{}

func (jsonCompleter) Complete(_ context.Context, prompt string) (string, error) {
	lower := strings.ToLower(prompt)
	activities := make([]string, 0, 2)
	for _, term := range []string{"snorkeling", "wine tasting", "hiking"} {
		if strings.Contains(lower, term) {
			activities = append(activities, term)
		}
	}
	country := "null"
	if strings.Contains(lower, "portugal") {
		country = "Portugal"
	}
	quoted := make([]string, len(activities))
	for i, a := range activities {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf(`{"city": null, "country": %q, "activities": [%s], "price_tier": null}`,
		country, strings.Join(quoted, ", ")), nil
}

// hashEmbedder gives each text a deterministic unit-ish vector so identical
// texts are identical vectors.
type hashEmbedder struct{ dim int }

func (h hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, h.dim)
	for i := range vec {
		bits := binary.LittleEndian.Uint16(sum[(i*2)%30:])
		vec[i] = float32(bits)/65535 - 0.5
	}
	return vec, nil
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(
		WithTaxonomyYAML([]byte(testTaxonomy)),
		WithCompleter(jsonCompleter{}),
		WithEmbedder(hashEmbedder{dim: 8}),
		WithDimensions(8),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestClient_UpsertSearchDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	states := c.UpsertBatch(ctx, []Document{
		{ID: "dest_1", Title: "Lisbon", Body: "Snorkeling along the coast of Portugal."},
		{ID: "dest_2", Title: "Tuscany", Body: "Wine tasting between hilltop villages."},
	})
	for id, s := range states {
		if s != "indexed" {
			t.Fatalf("doc %s state = %q, want indexed", id, s)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if err := c.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	resp, err := c.Search(ctx, "snorkeling in Portugal", ModeHybrid, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Results) == 0 || resp.Results[0].DocID != "dest_1" {
		t.Fatalf("results = %+v, want dest_1 first", resp.Results)
	}
	if resp.Filter.Country != "Portugal" {
		t.Fatalf("filter = %+v, want Country=Portugal", resp.Filter)
	}

	if !c.Delete("dest_1") {
		t.Fatal("delete returned false")
	}
	resp, err = c.Search(ctx, "snorkeling in Portugal", ModeLexical, 10)
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	for _, r := range resp.Results {
		if r.DocID == "dest_1" {
			t.Fatal("deleted document still returned")
		}
	}
}

func TestClient_RequiresProvidersAndTaxonomy(t *testing.T) {
	if _, err := New(WithTaxonomyYAML([]byte(testTaxonomy))); err == nil {
		t.Fatal("expected error without providers")
	}
	if _, err := New(WithCompleter(jsonCompleter{}), WithEmbedder(hashEmbedder{dim: 8})); err == nil {
		t.Fatal("expected error without taxonomy")
	}
}
