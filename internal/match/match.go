// Package match scores free-text ingredient names against the catalog index
// and returns ranked candidates. It makes no judgment about whether a match
// is good enough; that policy belongs to the pricing resolver.
package match

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/model"
)

// Candidate pairs a catalog entry with its similarity score in [0,100].
type Candidate struct {
	Entry model.CatalogEntry
	Score float64
}

var lvParams = levenshtein.NewParams()

// weight of the whole-string similarity component. The token component
// ignores extra qualifier tokens on the candidate ("APPLEWOOD SMOKED"), so a
// bare query matching a verbose SKU still clears the catalog threshold; the
// whole-string component keeps an exact name match strictly above any
// partial one.
const wholeStringWeight = 0.1

// Match ranks catalog entries against the query, best first, returning at
// most topK candidates. Ties keep catalog insertion order. An exact
// case-insensitive name match scores 100. The result is empty only when the
// index is empty.
func Match(query string, ix *catalog.Index, topK int) []Candidate {
	candidates := ix.Candidates()
	if len(candidates) == 0 {
		return nil
	}

	nq := catalog.Normalize(query)
	scored := make([]Candidate, len(candidates))
	for i, entry := range candidates {
		scored[i] = Candidate{Entry: entry, Score: score(nq, entry.NormalizedName)}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// score computes a partial, token-order-insensitive similarity between two
// normalized names, scaled 0-100. Each token of the shorter token set is
// aligned with its best edit-similarity counterpart in the longer set; the
// mean alignment similarity dominates, blended with the whole-string
// similarity so verbosity on the candidate costs a little but not much.
func score(normQuery, normCandidate string) float64 {
	if normQuery == "" || normCandidate == "" {
		return 0
	}
	if normQuery == normCandidate {
		return 100
	}

	qTokens := strings.Fields(normQuery)
	cTokens := strings.Fields(normCandidate)

	shorter, longer := qTokens, cTokens
	if len(cTokens) < len(qTokens) {
		shorter, longer = cTokens, qTokens
	}

	var sum float64
	for _, s := range shorter {
		best := 0.0
		for _, l := range longer {
			if sim := levenshtein.Similarity(s, l, lvParams); sim > best {
				best = sim
				if best == 1 {
					break
				}
			}
		}
		sum += best
	}
	tokenSim := sum / float64(len(shorter))
	wholeSim := levenshtein.Similarity(normQuery, normCandidate, lvParams)

	return ((1-wholeStringWeight)*tokenSim + wholeStringWeight*wholeSim) * 100
}
