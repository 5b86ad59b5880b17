package extract

import (
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

var stubTokenPattern = regexp.MustCompile(`[\p{L}\p{N}'’]+(?:-[\p{L}\p{N}]+)*|[^\s\p{L}\p{N}]`)

// stubModel tags fixed surface strings wherever they occur as whole words
type stubModel struct {
	entities map[string]string
	err      error
	calls    int
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Annotate(text string) (*Annotation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}

	type hit struct {
		pos int
		ent RawEntity
	}
	var hits []hit
	for surface, label := range s.entities {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(surface) + `\b`)
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{pos: loc[0], ent: RawEntity{Text: surface, Label: label}})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].ent.Text < hits[j].ent.Text
	})

	ann := &Annotation{Tokens: tokenize(text)}
	for _, h := range hits {
		ann.Entities = append(ann.Entities, h.ent)
	}
	return ann, nil
}

func tokenize(text string) []Token {
	var out []Token
	for _, w := range stubTokenPattern.FindAllString(text, -1) {
		out = append(out, Token{Text: w})
	}
	return out
}

func testGazetteer(t *testing.T) *Gazetteer {
	t.Helper()
	g, err := DefaultGazetteer()
	require.NoError(t, err)
	return g
}

func testExtractor(t *testing.T, entities map[string]string) *Extractor {
	t.Helper()
	return NewExtractor(&stubModel{entities: entities}, testGazetteer(t), DefaultOptions())
}
