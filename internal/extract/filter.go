package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ppiankov/civicner/internal/model"
)

// locationIndicators are substrings that mark a candidate as a place.
// County names that lack "shire" are listed explicitly.
var locationIndicators = []string{
	"shire", "borough", "council", "upon", "green", "common", "heath",
	"bridge", "cross", "gate", "town", "city", "district", "ward",
	"yorkshire", "kent", "essex", "surrey", "sussex", "devon", "cornwall",
	"norfolk", "suffolk", "cumbria", "durham", "northumberland", "dorset",
	"somerset", "rutland", "merseyside", "midlands", "anglia",
}

var postcodePattern = regexp.MustCompile(`(?i)^[A-Z]{1,2}[0-9]{1,2}[A-Z]?\s?[0-9][A-Z]{2}$`)

// Filter decides whether a location candidate is plausibly a UK place
type Filter struct {
	gazetteer          *Gazetteer
	singleWordFallback bool
}

// NewFilter builds a filter. With singleWordFallback any lone title-cased
// word is accepted as a last resort.
func NewFilter(g *Gazetteer, singleWordFallback bool) *Filter {
	return &Filter{gazetteer: g, singleWordFallback: singleWordFallback}
}

// IsPlausibleLocation applies the checks in order; the first hit accepts
func (f *Filter) IsPlausibleLocation(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	lower := strings.ToLower(candidate)

	if f.gazetteer.Contains(lower) {
		return true
	}
	for _, ind := range locationIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	if postcodePattern.MatchString(candidate) {
		return true
	}
	if f.singleWordFallback && len(strings.Fields(candidate)) == 1 && isTitleCased(candidate) {
		return true
	}
	return false
}

// Apply keeps only the plausible members of locs
func (f *Filter) Apply(locs model.LocationSet) model.LocationSet {
	out := model.NewLocationSet()
	for loc := range locs {
		if f.IsPlausibleLocation(loc) {
			out.Add(loc)
		}
	}
	return out
}

// isTitleCased is true for "Leeds" but not "LEEDS", "leeds" or "McDonald".
// Casers are stateful, so one is built per call.
func isTitleCased(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return false
	}
	return cases.Title(language.BritishEnglish).String(s) == s
}
