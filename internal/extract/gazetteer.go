package extract

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/gazetteer.yaml
var defaultGazetteerYAML []byte

// ErrEmptyGazetteer is returned when a gazetteer file lists no places
var ErrEmptyGazetteer = errors.New("gazetteer has no entries")

// gazetteerFile is the on-disk YAML layout
type gazetteerFile struct {
	Country  string   `yaml:"country"`
	Cities   []string `yaml:"cities"`
	Counties []string `yaml:"counties"`
}

// nonWord is a Unicode-aware word edge; \b only knows ASCII letters
const nonWord = `[^\p{L}\p{N}_]`

type entryMatcher struct {
	entry string
	re    *regexp.Regexp
}

// findAll returns every whole-word occurrence of the entry in text. The
// search resumes at the end of each name so a shared edge is not lost.
func (m entryMatcher) findAll(text string) []string {
	var out []string
	for pos := 0; pos <= len(text); {
		loc := m.re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		out = append(out, text[pos+loc[2]:pos+loc[3]])
		pos += loc[3]
	}
	return out
}

// Gazetteer is an immutable set of known places plus the structural token
// patterns used to spot place names the model misses
type Gazetteer struct {
	country  string
	cities   map[string]struct{}
	counties map[string]struct{}
	matchers []entryMatcher
	patterns []TokenPattern
}

// DefaultGazetteer returns the built-in UK gazetteer
func DefaultGazetteer() (*Gazetteer, error) {
	return parseGazetteer(defaultGazetteerYAML)
}

// LoadGazetteer reads a gazetteer YAML file
func LoadGazetteer(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	g, err := parseGazetteer(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func parseGazetteer(data []byte) (*Gazetteer, error) {
	var f gazetteerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse gazetteer: %w", err)
	}
	return NewGazetteer(f.Country, f.Cities, f.Counties)
}

// NewGazetteer builds a gazetteer from city and county names.
// Entries are lower-cased and de-duplicated.
func NewGazetteer(country string, cities, counties []string) (*Gazetteer, error) {
	g := &Gazetteer{
		country:  country,
		cities:   toSet(cities),
		counties: toSet(counties),
		patterns: defaultPatterns(),
	}
	if len(g.cities)+len(g.counties) == 0 {
		return nil, ErrEmptyGazetteer
	}

	all := make(map[string]struct{}, len(g.cities)+len(g.counties))
	for e := range g.cities {
		all[e] = struct{}{}
	}
	for e := range g.counties {
		all[e] = struct{}{}
	}
	entries := make([]string, 0, len(all))
	for e := range all {
		entries = append(entries, e)
	}
	sort.Strings(entries)

	g.matchers = make([]entryMatcher, 0, len(entries))
	for _, e := range entries {
		g.matchers = append(g.matchers, entryMatcher{
			entry: e,
			re:    regexp.MustCompile(`(?i)(?:^|` + nonWord + `)(` + regexp.QuoteMeta(e) + `)(?:$|` + nonWord + `)`),
		})
	}
	return g, nil
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

// Country is the ISO code the gazetteer describes
func (g *Gazetteer) Country() string { return g.country }

// Len is the number of distinct entries
func (g *Gazetteer) Len() int { return len(g.matchers) }

// IsCity reports whether name (any case) is a known city
func (g *Gazetteer) IsCity(name string) bool {
	_, ok := g.cities[strings.ToLower(name)]
	return ok
}

// IsCounty reports whether name (any case) is a known county or region
func (g *Gazetteer) IsCounty(name string) bool {
	_, ok := g.counties[strings.ToLower(name)]
	return ok
}

// Contains reports whether name is a city or a county
func (g *Gazetteer) Contains(name string) bool {
	return g.IsCity(name) || g.IsCounty(name)
}

// Patterns returns the structural token patterns
func (g *Gazetteer) Patterns() []TokenPattern { return g.patterns }

// Scan returns every whole-word gazetteer hit in text, in the casing it
// appears with. Overlapping entries ("Newcastle", "Newcastle upon Tyne")
// are all reported.
func (g *Gazetteer) Scan(text string) []string {
	var hits []string
	for _, m := range g.matchers {
		hits = append(hits, m.findAll(text)...)
	}
	return hits
}
