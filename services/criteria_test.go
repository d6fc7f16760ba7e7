package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

func TestAggregateCrossProduct(t *testing.T) {
	a := NewCriteriaAggregator(utils.NewNopLogger())
	customer := models.Customer{
		ID:        "c1",
		Locations: []string{"Kadıköy", "Beşiktaş"},
		Kinds:     []models.PropertyKind{models.KindApartment, models.KindVilla, models.KindLand},
		PriceMin:  1000000,
		PriceMax:  3000000,
	}

	got := a.Aggregate(nil, []models.Customer{customer})
	require.Len(t, got, 6)

	cells := make(map[string]bool)
	for _, c := range got {
		assert.Equal(t, models.ProvenanceDerived, c.Provenance)
		assert.Equal(t, "c1", c.CustomerID)
		assert.Equal(t, models.AllPortals, c.Portals)
		assert.Equal(t, 1000000.0, c.PriceMin)
		assert.Equal(t, 3000000.0, c.PriceMax)
		cells[c.Region+"/"+string(c.Kind)] = true
	}
	assert.Len(t, cells, 6)
}

func TestAggregateManualRules(t *testing.T) {
	a := NewCriteriaAggregator(utils.NewNopLogger())
	rules := []models.MonitorRule{
		{ID: "r1", Region: "Şişli", Kind: models.KindCommercial, Portals: []models.Portal{models.PortalSahibinden}, Enabled: true},
		{ID: "r2", Region: "Üsküdar", Enabled: false},
		{ID: "r3", Region: "Ataşehir", Enabled: true},
	}
	customers := []models.Customer{{ID: "c1", Locations: []string{"Kadıköy"}}}

	got := a.Aggregate(rules, customers)
	require.Len(t, got, 3)

	assert.Equal(t, "r1", got[0].RuleID)
	assert.Equal(t, models.ProvenanceManual, got[0].Provenance)
	assert.Equal(t, []models.Portal{models.PortalSahibinden}, got[0].Portals)

	assert.Equal(t, "r3", got[1].RuleID)
	assert.Equal(t, models.AllPortals, got[1].Portals)

	// a customer without kinds yields one cell with no kind filter
	assert.Equal(t, "c1", got[2].CustomerID)
	assert.Equal(t, models.PropertyKind(""), got[2].Kind)
}

func TestAggregateNotDeduplicated(t *testing.T) {
	a := NewCriteriaAggregator(utils.NewNopLogger())
	rules := []models.MonitorRule{{ID: "r1", Region: "Kadıköy", Kind: models.KindApartment, Enabled: true}}
	customers := []models.Customer{
		{ID: "c1", Locations: []string{"Kadıköy"}, Kinds: []models.PropertyKind{models.KindApartment}},
		{ID: "c2", Locations: []string{"Kadıköy"}, Kinds: []models.PropertyKind{models.KindApartment}},
	}

	got := a.Aggregate(rules, customers)
	assert.Len(t, got, 3)
}

func TestAggregatePortalsNotShared(t *testing.T) {
	a := NewCriteriaAggregator(utils.NewNopLogger())
	got := a.Aggregate(nil, []models.Customer{{ID: "c1", Locations: []string{"Kadıköy"}}})
	require.Len(t, got, 1)

	got[0].Portals[0] = models.PortalUnknown
	assert.Equal(t, models.PortalSahibinden, models.AllPortals[0])
}

func TestSearchURLsSkipsUnsupported(t *testing.T) {
	a := NewCriteriaAggregator(utils.NewNopLogger())
	c := models.SearchCriteria{
		Region:  "Şişli",
		Kind:    models.KindCommercial,
		Portals: models.AllPortals,
	}

	got := a.SearchURLs(c)
	require.Len(t, got, 2)
	assert.Equal(t, models.PortalSahibinden, got[0].Portal)
	assert.Equal(t, "https://www.sahibinden.com/satilik-isyeri/sisli", got[0].URL)
	assert.Equal(t, models.PortalHepsiemlak, got[1].Portal)
	assert.Equal(t, c, got[1].Criteria)
}

func TestSearchURLsEmptyRegion(t *testing.T) {
	a := NewCriteriaAggregator(utils.NewNopLogger())
	assert.Empty(t, a.SearchURLs(models.SearchCriteria{Portals: models.AllPortals}))
}
