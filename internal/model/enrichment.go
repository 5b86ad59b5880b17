package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Category is the closed set of entity kinds the recognizer emits.
// Model labels outside this set never cross the recognizer boundary.
type Category int

const (
	CategoryLocation Category = iota + 1 // Place mention (city, county, postcode, ...)
	CategoryPerson                       // Person-name mention
)

// String returns the canonical upper-case tag
func (c Category) String() string {
	switch c {
	case CategoryLocation:
		return "LOCATION"
	case CategoryPerson:
		return "PERSON"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// MarshalText encodes the category as its tag
func (c Category) MarshalText() ([]byte, error) {
	if c != CategoryLocation && c != CategoryPerson {
		return nil, fmt.Errorf("invalid category: %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a tag; unknown tags are rejected
func (c *Category) UnmarshalText(data []byte) error {
	switch string(data) {
	case "LOCATION":
		*c = CategoryLocation
	case "PERSON":
		*c = CategoryPerson
	default:
		return fmt.Errorf("unknown category: %q", string(data))
	}
	return nil
}

// TextSpan is a contiguous slice of the source text tagged with a category.
// Offsets are byte positions: source[Start:End] == Text.
type TextSpan struct {
	Text     string   `json:"text"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Category Category `json:"category"`
}

// RoleTag describes a person's inferred social/political role
type RoleTag string

const (
	RoleMP              RoleTag = "MP"
	RoleCouncillor      RoleTag = "Councillor"
	RoleCandidate       RoleTag = "Candidate"
	RoleLeader          RoleTag = "Leader"
	RoleDeputyLeader    RoleTag = "Deputy Leader"
	RolePoliticalFigure RoleTag = "Political Figure"
	RolePerson          RoleTag = "Person" // Fallback when nothing in context suggests a role
)

// AllRoles lists every valid role tag
var AllRoles = []RoleTag{
	RoleMP, RoleCouncillor, RoleCandidate, RoleLeader,
	RoleDeputyLeader, RolePoliticalFigure, RolePerson,
}

// Valid reports whether r is one of the closed set of tags
func (r RoleTag) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsSpecific is true for every tag except the bare Person fallback
func (r RoleTag) IsSpecific() bool {
	return r != RolePerson
}

// UnmarshalText rejects tags outside the closed set
func (r *RoleTag) UnmarshalText(data []byte) error {
	tag := RoleTag(data)
	if !tag.Valid() {
		return fmt.Errorf("unknown role tag: %q", string(data))
	}
	*r = tag
	return nil
}

// PersonMention pairs a surface name with its resolved role
type PersonMention struct {
	Name string  `json:"name"`
	Role RoleTag `json:"role"`
}

// LocationSet is a set of location strings compared by exact,
// case-sensitive identity. Surface forms are never normalised.
type LocationSet map[string]struct{}

// NewLocationSet builds a set from the given values
func NewLocationSet(values ...string) LocationSet {
	s := make(LocationSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts a value
func (s LocationSet) Add(v string) {
	s[v] = struct{}{}
}

// Has reports membership
func (s LocationSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Union returns a new set holding the members of both sets
func (s LocationSet) Union(other LocationSet) LocationSet {
	out := make(LocationSet, len(s)+len(other))
	for v := range s {
		out[v] = struct{}{}
	}
	for v := range other {
		out[v] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order
func (s LocationSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array
func (s LocationSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of strings
func (s *LocationSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewLocationSet(values...)
	return nil
}

// EnrichmentResult holds the locations and persons found in one text source
type EnrichmentResult struct {
	Locations LocationSet        `json:"locations"`
	Persons   map[string]RoleTag `json:"persons"`
}

// NewEnrichmentResult returns an empty, ready-to-use result
func NewEnrichmentResult() EnrichmentResult {
	return EnrichmentResult{
		Locations: make(LocationSet),
		Persons:   make(map[string]RoleTag),
	}
}

// AddPerson records a person, letting any specific role displace Person.
// When two different specific roles meet, the one recorded first stays.
func (r *EnrichmentResult) AddPerson(name string, role RoleTag) {
	if r.Persons == nil {
		r.Persons = make(map[string]RoleTag)
	}
	existing, ok := r.Persons[name]
	if !ok || (!existing.IsSpecific() && role.IsSpecific()) {
		r.Persons[name] = role
	}
}

// Mentions returns the persons as a name-sorted slice
func (r EnrichmentResult) Mentions() []PersonMention {
	out := make([]PersonMention, 0, len(r.Persons))
	for name, role := range r.Persons {
		out = append(out, PersonMention{Name: name, Role: role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Empty reports whether nothing was found
func (r EnrichmentResult) Empty() bool {
	return len(r.Locations) == 0 && len(r.Persons) == 0
}
