// Package taxonomy holds the canonical activity taxonomy and the fuzzy
// matcher that maps free text onto it. The taxonomy is loaded once at
// startup and immutable afterwards, so it is safe to share across
// goroutines without locking.
package taxonomy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/voyago/tripdex/internal/domain"
)

// Taxonomy maps free-text synonyms to canonical activity ids and category
// ids to their member activity sets.
type Taxonomy struct {
	synonyms   map[string]string   // normalized synonym -> canonical activity id
	activities map[string]struct{} // declared canonical ids
	categories map[string][]string // normalized category key (id or alias) -> sorted members

	synonymKeys  []string // sorted, for fuzzy scans and the heuristic extractor
	categoryKeys []string
}

type taxonomyFile struct {
	Activities map[string]activityEntry `yaml:"activities"`
	Categories map[string]categoryEntry `yaml:"categories"`
}

type activityEntry struct {
	Synonyms []string `yaml:"synonyms"`
}

type categoryEntry struct {
	Aliases []string `yaml:"aliases"`
	Members []string `yaml:"members"`
}

var canonicalIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Load reads and validates a taxonomy YAML file. Any malformed entry is a
// fatal configuration error; the process must not serve with a partially
// loaded taxonomy.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Parse builds a Taxonomy from YAML bytes.
func Parse(data []byte) (*Taxonomy, error) {
	var file taxonomyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidTaxonomy, err)
	}
	if len(file.Activities) == 0 {
		return nil, fmt.Errorf("%w: no activities declared", domain.ErrInvalidTaxonomy)
	}

	t := &Taxonomy{
		synonyms:   make(map[string]string),
		activities: make(map[string]struct{}, len(file.Activities)),
		categories: make(map[string][]string, len(file.Categories)),
	}

	for id, entry := range file.Activities {
		if !canonicalIDPattern.MatchString(id) {
			return nil, fmt.Errorf("%w: bad canonical activity id %q", domain.ErrInvalidTaxonomy, id)
		}
		t.activities[id] = struct{}{}

		// The canonical id is a synonym of itself, in both underscore and
		// space form.
		if err := t.addSynonym(Normalize(id), id); err != nil {
			return nil, err
		}
		for _, syn := range entry.Synonyms {
			norm := Normalize(syn)
			if norm == "" {
				return nil, fmt.Errorf("%w: empty synonym for activity %q", domain.ErrInvalidTaxonomy, id)
			}
			if err := t.addSynonym(norm, id); err != nil {
				return nil, err
			}
		}
	}

	for id, entry := range file.Categories {
		if !canonicalIDPattern.MatchString(id) {
			return nil, fmt.Errorf("%w: bad category id %q", domain.ErrInvalidTaxonomy, id)
		}
		if len(entry.Members) == 0 {
			return nil, fmt.Errorf("%w: category %q has no members", domain.ErrInvalidTaxonomy, id)
		}
		members := make([]string, 0, len(entry.Members))
		for _, m := range entry.Members {
			if _, ok := t.activities[m]; !ok {
				return nil, fmt.Errorf("%w: category %q references undeclared activity %q",
					domain.ErrInvalidTaxonomy, id, m)
			}
			members = append(members, m)
		}
		sort.Strings(members)

		keys := append([]string{id}, entry.Aliases...)
		for _, key := range keys {
			norm := Normalize(key)
			if norm == "" {
				return nil, fmt.Errorf("%w: empty alias for category %q", domain.ErrInvalidTaxonomy, id)
			}
			if _, ok := t.synonyms[norm]; ok {
				return nil, fmt.Errorf("%w: category key %q collides with an activity synonym",
					domain.ErrInvalidTaxonomy, norm)
			}
			if _, ok := t.categories[norm]; ok {
				return nil, fmt.Errorf("%w: duplicate category key %q", domain.ErrInvalidTaxonomy, norm)
			}
			t.categories[norm] = members
		}
	}

	t.synonymKeys = sortedKeys(t.synonyms)
	t.categoryKeys = sortedCategoryKeys(t.categories)
	return t, nil
}

func (t *Taxonomy) addSynonym(norm, id string) error {
	if existing, ok := t.synonyms[norm]; ok && existing != id {
		return fmt.Errorf("%w: synonym %q claimed by both %q and %q",
			domain.ErrInvalidTaxonomy, norm, existing, id)
	}
	t.synonyms[norm] = id
	return nil
}

// Canonical returns the canonical activity id for a normalized term.
func (t *Taxonomy) Canonical(term string) (string, bool) {
	id, ok := t.synonyms[Normalize(term)]
	return id, ok
}

// CategoryMembers returns the member activity set for a category id or alias.
func (t *Taxonomy) CategoryMembers(term string) ([]string, bool) {
	members, ok := t.categories[Normalize(term)]
	return members, ok
}

// IsActivity reports whether id is a declared canonical activity.
func (t *Taxonomy) IsActivity(id string) bool {
	_, ok := t.activities[id]
	return ok
}

// SynonymKeys returns all normalized synonym keys, sorted.
func (t *Taxonomy) SynonymKeys() []string { return t.synonymKeys }

// CategoryKeys returns all normalized category keys, sorted.
func (t *Taxonomy) CategoryKeys() []string { return t.categoryKeys }

// Normalize lowercases, trims, collapses whitespace, and treats underscores
// as spaces so canonical ids and free text compare in the same form.
func Normalize(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	return strings.Join(strings.Fields(s), " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCategoryKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
