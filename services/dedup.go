package services

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"emlak-ingest/models"
	"emlak-ingest/scraper/normalize"
)

// DedupThreshold is the minimum similarity score for an inventory item to be
// reported as a likely duplicate.
const DedupThreshold = 75

// DedupMatcher scores a candidate listing against a user's own inventory.
type DedupMatcher struct{}

func NewDedupMatcher() *DedupMatcher {
	return &DedupMatcher{}
}

// SearchString is title plus every address component, lower-cased with
// Turkish rules and whitespace-collapsed.
func SearchString(title string, loc models.Location) string {
	return normalize.Lower(normalize.CleanText(
		title + " " + loc.City + " " + loc.District + " " + loc.Neighborhood + " " + loc.Address,
	))
}

// Score returns the Levenshtein similarity ratio of a and b on a 0–100 scale.
// Identical non-empty strings score 100; two empty strings carry no evidence
// and score 0.
func Score(a, b string) int {
	a = normalize.Lower(normalize.CleanText(a))
	b = normalize.Lower(normalize.CleanText(b))
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(longest))))
}

// Match returns the inventory items scoring at least DedupThreshold against
// candidate, best match first.
func (m *DedupMatcher) Match(candidate models.Listing, inventory []models.Property) []models.Property {
	target := SearchString(candidate.Title, candidate.Location)

	type scored struct {
		p     models.Property
		score int
	}
	var hits []scored
	for _, p := range inventory {
		s := Score(target, SearchString(p.Title, p.Location))
		if s >= DedupThreshold {
			hits = append(hits, scored{p: p, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	out := make([]models.Property, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.p)
	}
	return out
}
