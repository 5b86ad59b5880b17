package extract

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/civicner/internal/logger"
	"github.com/ppiankov/civicner/internal/model"
)

// labelCategories maps the loose model labels onto the closed category set.
// Anything not listed here (ORG, MISC, DATE, ...) is dropped at the boundary.
var labelCategories = map[string]model.Category{
	"PERSON":   model.CategoryPerson,
	"PER":      model.CategoryPerson,
	"GPE":      model.CategoryLocation,
	"LOC":      model.CategoryLocation,
	"LOCATION": model.CategoryLocation,
}

// Analysis is the recognizer output for one text
type Analysis struct {
	Spans  []model.TextSpan
	Tokens []Token
}

// Recognizer turns model output into categorised, offset-bearing spans
type Recognizer struct {
	model         Model
	minSpanLength int
	log           *slog.Logger
}

// NewRecognizer wraps a model. Spans shorter than minSpanLength runes are dropped.
func NewRecognizer(m Model, minSpanLength int, log *slog.Logger) *Recognizer {
	return &Recognizer{
		model:         m,
		minSpanLength: minSpanLength,
		log:           logger.OrDiscard(log),
	}
}

// Recognize returns the location and person spans found in text
func (r *Recognizer) Recognize(text string) []model.TextSpan {
	return r.Analyze(text).Spans
}

// Analyze runs the model once and returns both spans and tokens.
// A model failure is logged and yields an empty analysis.
func (r *Recognizer) Analyze(text string) Analysis {
	if strings.TrimSpace(text) == "" {
		return Analysis{}
	}

	ann, err := r.model.Annotate(text)
	if err != nil {
		r.log.Warn("model annotation failed", slog.String("model", r.model.Name()), slog.Any("err", err))
		return Analysis{}
	}

	var spans []model.TextSpan
	cursor := 0
	dropped := 0
	for _, ent := range ann.Entities {
		category, ok := labelCategories[strings.ToUpper(ent.Label)]
		if !ok {
			dropped++
			continue
		}
		if r.isNoise(ent.Text) {
			continue
		}
		start, end, found := locate(text, ent.Text, cursor)
		if !found {
			r.log.Debug("entity not found in source", slog.String("entity", ent.Text))
			continue
		}
		cursor = end
		if category == model.CategoryPerson {
			if off := titlePrefixLength(text[start:end]); off > 0 {
				if r.isNoise(text[start+off : end]) {
					continue
				}
				start += off
			}
		}
		spans = append(spans, model.TextSpan{
			Text:     text[start:end],
			Start:    start,
			End:      end,
			Category: category,
		})
	}
	if dropped > 0 {
		r.log.Debug("ignored entities with unsupported labels", slog.Int("count", dropped))
	}

	return Analysis{Spans: spans, Tokens: ann.Tokens}
}

// isNoise reports spans that are too short or purely numeric
func (r *Recognizer) isNoise(s string) bool {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) < r.minSpanLength {
		return true
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// leadingTitles are words a model may fold into the front of a person
// entity. They belong to the context, not the name.
var leadingTitles = map[string]bool{
	"mp":            true,
	"cllr":          true,
	"councillor":    true,
	"candidate":     true,
	"leader":        true,
	"deputy":        true,
	"prospective":   true,
	"parliamentary": true,
	"former":        true,
	"the":           true,
}

// titlePrefixLength returns how many bytes of leading titles, and the
// whitespace after them, open span. The final word is never counted.
func titlePrefixLength(span string) int {
	off := 0
	for {
		rest := span[off:]
		trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
		end := strings.IndexFunc(trimmed, unicode.IsSpace)
		if end < 0 {
			break
		}
		word := strings.TrimSuffix(strings.ToLower(trimmed[:end]), ".")
		if !leadingTitles[word] {
			break
		}
		off += len(rest) - len(trimmed) + end
	}
	if off == 0 {
		return 0
	}
	rest := span[off:]
	return off + len(rest) - len(strings.TrimLeftFunc(rest, unicode.IsSpace))
}

// locate finds entity in text at or after from, falling back to the whole
// text. Models may re-space tokens, so a whitespace-tolerant search is tried
// when the exact string is absent.
func locate(text, entity string, from int) (int, int, bool) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return 0, 0, false
	}
	if from > len(text) {
		from = len(text)
	}
	if i := strings.Index(text[from:], entity); i >= 0 {
		return from + i, from + i + len(entity), true
	}
	if i := strings.Index(text, entity); i >= 0 {
		return i, i + len(entity), true
	}

	re := flexiblePattern(entity)
	if loc := re.FindStringIndex(text[from:]); loc != nil {
		return from + loc[0], from + loc[1], true
	}
	if loc := re.FindStringIndex(text); loc != nil {
		return loc[0], loc[1], true
	}
	return 0, 0, false
}

// flexiblePattern matches the entity's pieces separated by any whitespace,
// or none (tokenisers split "O'Neill" and "Stoke-on-Trent" differently)
func flexiblePattern(entity string) *regexp.Regexp {
	fields := strings.Fields(entity)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(strings.Join(quoted, `\s*`))
}
