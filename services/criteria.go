package services

import (
	"strings"

	"emlak-ingest/models"
	"emlak-ingest/scraper/portal"
	"emlak-ingest/utils"
)

// PortalSearch is one search-results URL synthesised for a criteria item.
type PortalSearch struct {
	Criteria models.SearchCriteria
	Portal   models.Portal
	URL      string
}

// CriteriaAggregator merges manual monitoring rules with criteria derived
// from saved customers.
type CriteriaAggregator struct {
	logger *utils.Logger
}

func NewCriteriaAggregator(logger *utils.Logger) *CriteriaAggregator {
	return &CriteriaAggregator{logger: logger}
}

// Aggregate returns the enabled manual rules followed by one criteria per
// (location × kind) cell of every customer. The two lists are concatenated,
// never merged or deduplicated.
func (a *CriteriaAggregator) Aggregate(rules []models.MonitorRule, customers []models.Customer) []models.SearchCriteria {
	out := make([]models.SearchCriteria, 0, len(rules))

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		portals := r.Portals
		if len(portals) == 0 {
			portals = models.AllPortals
		}
		out = append(out, models.SearchCriteria{
			Region:     r.Region,
			PriceMin:   r.PriceMin,
			PriceMax:   r.PriceMax,
			Kind:       r.Kind,
			Portals:    append([]models.Portal(nil), portals...),
			Provenance: models.ProvenanceManual,
			RuleID:     r.ID,
		})
	}
	manual := len(out)

	for _, c := range customers {
		kinds := c.Kinds
		if len(kinds) == 0 {
			kinds = []models.PropertyKind{""}
		}
		for _, loc := range c.Locations {
			if strings.TrimSpace(loc) == "" {
				continue
			}
			for _, kind := range kinds {
				out = append(out, models.SearchCriteria{
					Region:     loc,
					PriceMin:   c.PriceMin,
					PriceMax:   c.PriceMax,
					Kind:       kind,
					Portals:    append([]models.Portal(nil), models.AllPortals...),
					Provenance: models.ProvenanceDerived,
					CustomerID: c.ID,
				})
			}
		}
	}

	a.logger.Info("[criteria] %d manual + %d derived criteria from %d customers",
		manual, len(out)-manual, len(customers))
	return out
}

// SearchURLs builds one search URL per requested portal. Combinations a
// portal cannot express are logged and skipped.
func (a *CriteriaAggregator) SearchURLs(c models.SearchCriteria) []PortalSearch {
	out := make([]PortalSearch, 0, len(c.Portals))
	for _, p := range c.Portals {
		url, err := portal.SearchURL(p, c)
		if err != nil {
			a.logger.Warn("[criteria] Skipping %s search for %q (%s): %v", p, c.Region, c.Kind, err)
			continue
		}
		out = append(out, PortalSearch{Criteria: c, Portal: p, URL: url})
	}
	return out
}
