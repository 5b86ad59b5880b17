package extract

import "github.com/ppiankov/civicner/internal/model"

// Merge combines the post-text result (primary) with the link-text result
// (secondary). Locations are unioned by exact string. A specific role always
// beats Person; between two different specific roles the primary's is kept.
// Neither input is modified.
func Merge(primary, secondary model.EnrichmentResult) model.EnrichmentResult {
	out := model.NewEnrichmentResult()
	out.Locations = primary.Locations.Union(secondary.Locations)

	for name, role := range primary.Persons {
		out.Persons[name] = role
	}
	for name, role := range secondary.Persons {
		out.AddPerson(name, role)
	}
	return out
}
