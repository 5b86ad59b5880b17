package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/civicner/internal/model"
)

// DefaultContextRadius is the number of bytes inspected either side of a name
const DefaultContextRadius = 100

// namePlaceholder marks where the person name sits in rule templates
const namePlaceholder = "{name}"

// nameEnd closes a name without requiring it to end in a word character
const nameEnd = `(?:\W|$)`

// RoleRule maps a context pattern to a role. Pattern and Reject are
// templates containing {name}; a rule whose Reject matches does not fire.
type RoleRule struct {
	Tag     model.RoleTag
	Pattern string
	Reject  string
}

// defaultRoleRules are evaluated in order; the first rule that fires wins
var defaultRoleRules = []RoleRule{
	{Tag: model.RoleMP, Pattern: `\bmp\s+{name}` + nameEnd},
	{Tag: model.RoleMP, Pattern: `{name},?\s+(?:the\s+)?(?:mp|member\s+of\s+parliament)\b`},
	{Tag: model.RoleMP, Pattern: `{name}\s*\(\s*mp\b[^)]*\)`},

	{Tag: model.RoleCouncillor, Pattern: `\b(?:councillor|cllr\.?)\s+{name}` + nameEnd},
	{Tag: model.RoleCouncillor, Pattern: `{name},?\s+(?:a\s+|the\s+)?(?:councillor|cllr)\b`},
	{Tag: model.RoleCouncillor, Pattern: `{name}\s*\(\s*(?:councillor|cllr)\b[^)]*\)`},

	{Tag: model.RoleCandidate, Pattern: `\b(?:prospective\s+)?(?:parliamentary\s+)?candidate\s+{name}` + nameEnd},
	{Tag: model.RoleCandidate, Pattern: `{name},?\s+(?:a\s+|the\s+)?(?:prospective\s+)?(?:parliamentary\s+)?candidate\b`},
	{Tag: model.RoleCandidate, Pattern: `{name}\s*\(\s*(?:prospective\s+)?candidate\b[^)]*\)`},
	{Tag: model.RoleCandidate, Pattern: `{name}\s+(?:is\s+)?(?:stands|standing|runs|running)\s+(?:for|as)\b`},

	{Tag: model.RoleLeader, Pattern: `\bleader\s+{name}` + nameEnd, Reject: `\bdeputy[\s-]+leader\s+{name}` + nameEnd},
	{Tag: model.RoleLeader, Pattern: `{name},?\s+(?:the\s+)?(?:party\s+)?leader\b`},
	{Tag: model.RoleLeader, Pattern: `{name}\s*\(\s*(?:party\s+)?leader\b[^)]*\)`},

	{Tag: model.RoleDeputyLeader, Pattern: `\bdeputy[\s-]+leader\s+{name}` + nameEnd},
	{Tag: model.RoleDeputyLeader, Pattern: `{name},?\s+(?:the\s+)?deputy[\s-]+leader\b`},
	{Tag: model.RoleDeputyLeader, Pattern: `{name}\s*\(\s*deputy[\s-]+leader\b[^)]*\)`},
}

// politicalKeywords mark an otherwise untitled name as a political figure
var politicalKeywords = []string{
	"reform uk", "reform party", "election", "constituency",
	"council", "government", "political", "parliament",
}

// compiledRule is a RoleRule with {name} bound to nameMark
type compiledRule struct {
	tag     model.RoleTag
	pattern *regexp.Regexp
	reject  *regexp.Regexp
}

// RoleClassifier infers a person's role from the text around the mention
type RoleClassifier struct {
	radius   int
	rules    []RoleRule
	compiled []compiledRule
}

// NewRoleClassifier uses the default rule table. A non-positive radius
// selects DefaultContextRadius.
func NewRoleClassifier(radius int) *RoleClassifier {
	if radius <= 0 {
		radius = DefaultContextRadius
	}
	c := &RoleClassifier{radius: radius, rules: defaultRoleRules}
	for _, rule := range c.rules {
		cr := compiledRule{tag: rule.Tag, pattern: compileRule(rule.Pattern)}
		if rule.Reject != "" {
			cr.reject = compileRule(rule.Reject)
		}
		c.compiled = append(c.compiled, cr)
	}
	return c
}

// Rules returns a copy of the ordered rule table
func (c *RoleClassifier) Rules() []RoleRule {
	out := make([]RoleRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the role of name, whose mention occupies text[start:end]
func (c *RoleClassifier) Classify(name, text string, start, end int) model.RoleTag {
	window := contextWindow(text, start, end, c.radius)
	marked, ok := markName(window, name)
	if !ok {
		return model.RolePerson
	}

	for _, rule := range c.compiled {
		if !rule.pattern.MatchString(marked) {
			continue
		}
		if rule.reject != nil && rule.reject.MatchString(marked) {
			continue
		}
		return rule.tag
	}

	for _, kw := range politicalKeywords {
		if strings.Contains(window, kw) {
			return model.RolePoliticalFigure
		}
	}
	return model.RolePerson
}

// contextWindow returns the lower-cased text within radius bytes of the
// span, clipped to the text and to rune boundaries
func contextWindow(text string, start, end, radius int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}

	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	for lo < start && !utf8.RuneStart(text[lo]) {
		lo++
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	for hi > end && hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return strings.ToLower(text[lo:hi])
}

// nameMark stands in for every mention of the classified name
const nameMark = "\x00"

// markName replaces each mention of name in window with nameMark. Words of
// the name may be separated by any run of whitespace.
func markName(window, name string) (string, bool) {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return "", false
	}
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	re := regexp.MustCompile(`(?i)` + strings.Join(fields, `\s+`))
	window = strings.ReplaceAll(window, nameMark, "")
	return re.ReplaceAllLiteralString(window, nameMark), true
}

func compileRule(template string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + strings.ReplaceAll(template, namePlaceholder, `\x00`))
}
