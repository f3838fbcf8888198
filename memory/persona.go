package memory

import (
	"fmt"
	"sort"
	"strings"
)

// facetCapacityPerCategory bounds how many facets survive per category
// after a merge pass, keeping the persona block from growing unbounded.
const facetCapacityPerCategory = 5

// PersonaFacet is one distilled fact or trait about the conversation's
// participants, confidence-weighted so it can decay and eventually drop
// out of the persona block.
type PersonaFacet struct {
	Category string
	Text     string
	Weight   float64
}

// personaState tracks the agent's accumulated persona facets and the
// version counter bumped on every refresh.
type personaState struct {
	version int
	facets  []PersonaFacet
}

// mergeFacets decays existing facets by decayPerPass, folds in incoming
// facets (bumping the weight of an existing category+text match rather
// than duplicating it), drops anything below minKeepWeight, and caps each
// category to facetCapacityPerCategory facets, keeping the heaviest.
func mergeFacets(existing []PersonaFacet, incoming []PersonaFacet, decayPerPass, minKeepWeight float64) []PersonaFacet {
	decay := 1 - decayPerPass
	merged := make([]PersonaFacet, len(existing))
	copy(merged, existing)
	for i := range merged {
		merged[i].Weight *= decay
	}

	for _, in := range incoming {
		found := false
		for i := range merged {
			if merged[i].Category == in.Category && merged[i].Text == in.Text {
				merged[i].Weight = minFloat(1.0, merged[i].Weight+in.Weight)
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, in)
		}
	}

	kept := merged[:0]
	for _, f := range merged {
		if f.Weight >= minKeepWeight {
			kept = append(kept, f)
		}
	}
	merged = kept

	return capPerCategory(merged, facetCapacityPerCategory)
}

func capPerCategory(facets []PersonaFacet, cap int) []PersonaFacet {
	byCategory := make(map[string][]PersonaFacet)
	var order []string
	for _, f := range facets {
		if _, ok := byCategory[f.Category]; !ok {
			order = append(order, f.Category)
		}
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	var out []PersonaFacet
	for _, cat := range order {
		group := byCategory[cat]
		sort.Slice(group, func(i, j int) bool { return group[i].Weight > group[j].Weight })
		if len(group) > cap {
			group = group[:cap]
		}
		out = append(out, group...)
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// renderPersonaBlock formats facets, heaviest first within each category,
// for upsert into the head system message's DYNAMIC PERSONA BLOCK.
func renderPersonaBlock(facets []PersonaFacet) string {
	sorted := make([]PersonaFacet, len(facets))
	copy(sorted, facets)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Weight > sorted[j].Weight
	})

	var b strings.Builder
	for _, f := range sorted {
		fmt.Fprintf(&b, "- [%s] %s (%.2f)\n", f.Category, f.Text, f.Weight)
	}
	return strings.TrimRight(b.String(), "\n")
}
