package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/civicner/internal/model"
)

// tokenPredicate tests a single token
type tokenPredicate func(Token) bool

// patternStep matches one token, or a greedy run of one or more tokens
type patternStep struct {
	match  tokenPredicate
	repeat bool
}

// TokenPattern is a short sequence of token predicates describing a
// place-name shape such as "Newcastle upon Tyne"
type TokenPattern struct {
	Name  string
	steps []patternStep
}

// hyphenatedPlace matches single-token names like Stoke-on-Trent or Weston-super-Mare
var hyphenatedPlace = regexp.MustCompile(
	`^\p{Lu}[\p{L}']*(?:-(?:upon|on|under|in|le|by|next|the|super|cum|en|de|la))+-\p{Lu}[\p{L}']*$`)

var hyphenLinkWords = []string{"upon", "on", "under", "in", "le", "by", "next", "the", "super", "cum", "en", "de", "la"}

func one(p tokenPredicate) patternStep  { return patternStep{match: p} }
func many(p tokenPredicate) patternStep { return patternStep{match: p, repeat: true} }

func word(words ...string) tokenPredicate {
	return func(t Token) bool {
		for _, w := range words {
			if strings.EqualFold(t.Text, w) {
				return true
			}
		}
		return false
	}
}

func exact(words ...string) tokenPredicate {
	return func(t Token) bool {
		for _, w := range words {
			if t.Text == w {
				return true
			}
		}
		return false
	}
}

// proper accepts capitalised alphabetic tokens
func proper(t Token) bool {
	r, size := utf8.DecodeRuneInString(t.Text)
	if size == 0 || !unicode.IsUpper(r) {
		return false
	}
	for _, ch := range t.Text {
		if !unicode.IsLetter(ch) && ch != '\'' && ch != '-' {
			return false
		}
	}
	return true
}

func hyphenated(t Token) bool {
	return hyphenatedPlace.MatchString(t.Text)
}

// defaultPatterns are evaluated in order; a later pattern never starts
// inside a span an earlier one already claimed
func defaultPatterns() []TokenPattern {
	return []TokenPattern{
		{Name: "royal-borough", steps: []patternStep{one(word("royal")), one(word("borough")), one(word("of")), many(proper)}},
		{Name: "admin-of", steps: []patternStep{one(exact("City", "Borough", "County", "District")), one(word("of")), many(proper)}},
		{Name: "upon", steps: []patternStep{one(proper), one(word("upon")), one(proper)}},
		{Name: "hyphenated", steps: []patternStep{one(hyphenated)}},
		{Name: "hyphenated-split", steps: []patternStep{one(proper), one(exact("-")), one(word(hyphenLinkWords...)), one(exact("-")), one(proper)}},
	}
}

// matchAt tries the pattern at tokens[i:], returning the end index
func (p TokenPattern) matchAt(tokens []Token, i int) (int, bool) {
	j := i
	for _, step := range p.steps {
		if j >= len(tokens) || !step.match(tokens[j]) {
			return 0, false
		}
		j++
		if step.repeat {
			for j < len(tokens) && step.match(tokens[j]) {
				j++
			}
		}
	}
	return j, true
}

// Find returns the surface text of every non-overlapping match
func (p TokenPattern) Find(tokens []Token) []string {
	var out []string
	for i := 0; i < len(tokens); {
		end, ok := p.matchAt(tokens, i)
		if !ok {
			i++
			continue
		}
		out = append(out, joinTokens(tokens[i:end]))
		i = end
	}
	return out
}

// joinTokens rebuilds surface text, keeping hyphens tight
func joinTokens(tokens []Token) string {
	var b strings.Builder
	for i, t := range tokens {
		if i > 0 && t.Text != "-" && tokens[i-1].Text != "-" {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// Augmenter adds place candidates the statistical model tends to miss
type Augmenter struct {
	gazetteer *Gazetteer
}

// NewAugmenter builds an augmenter over a gazetteer
func NewAugmenter(g *Gazetteer) *Augmenter {
	return &Augmenter{gazetteer: g}
}

// Augment returns existing plus every structural-pattern and gazetteer
// candidate found in text. It never removes entries and never filters.
func (a *Augmenter) Augment(text string, tokens []Token, existing model.LocationSet) model.LocationSet {
	out := model.NewLocationSet()
	for loc := range existing {
		out.Add(loc)
	}
	if strings.TrimSpace(text) == "" {
		return out
	}

	claimed := make([]bool, len(tokens))
	for _, p := range a.gazetteer.Patterns() {
		for i := 0; i < len(tokens); {
			if claimed[i] {
				i++
				continue
			}
			end, ok := p.matchAt(tokens, i)
			if !ok {
				i++
				continue
			}
			out.Add(joinTokens(tokens[i:end]))
			for k := i; k < end; k++ {
				claimed[k] = true
			}
			i = end
		}
	}

	for _, hit := range a.gazetteer.Scan(text) {
		out.Add(hit)
	}
	return out
}
