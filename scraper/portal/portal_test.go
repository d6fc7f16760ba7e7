package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emlak-ingest/models"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		url  string
		want models.Portal
	}{
		{"https://www.sahibinden.com/ilan/emlak-konut-satilik-123456789", models.PortalSahibinden},
		{"https://sahibinden.com/ilan/x-123456", models.PortalSahibinden},
		{"https://www.hepsiemlak.com/kadikoy-satilik/daire/86970-1234", models.PortalHepsiemlak},
		{"https://m.emlakjet.com/ilan/kadikoy-daire-14563201", models.PortalEmlakjet},
		{"https://notsahibinden.com/ilan/1", models.PortalUnknown},
		{"https://sahibinden.com.evil.io/ilan/1", models.PortalUnknown},
		{"https://www.zingat.com/ilan/1", models.PortalUnknown},
		{"not a url", models.PortalUnknown},
		{"", models.PortalUnknown},
	}

	for _, tt := range tests {
		if got := Resolve(tt.url); got != tt.want {
			t.Errorf("Resolve(%q) = %q; want %q", tt.url, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, models.PortalEmlakjet, Parse(" Emlakjet "))
	assert.Equal(t, models.PortalUnknown, Parse("zingat"))
}

func TestExtractID(t *testing.T) {
	tests := []struct {
		portal models.Portal
		url    string
		want   string
		ok     bool
	}{
		{models.PortalSahibinden, "https://www.sahibinden.com/ilan/emlak-konut-satilik-123456789", "123456789", true},
		{models.PortalSahibinden, "https://www.sahibinden.com/ilan/emlak-konut-satilik-123456789/detay", "123456789", true},
		{models.PortalSahibinden, "https://www.sahibinden.com/emlak", "", false},
		{models.PortalHepsiemlak, "https://www.hepsiemlak.com/kadikoy-satilik/daire/86970-1234", "86970-1234", true},
		{models.PortalHepsiemlak, "https://www.hepsiemlak.com/kadikoy-satilik", "", false},
		{models.PortalEmlakjet, "https://www.emlakjet.com/ilan/kadikoy-satilik-3-1-daire-14563201/", "14563201", true},
		{models.PortalEmlakjet, "https://www.emlakjet.com/satilik-konut/istanbul", "", false},
		{models.PortalUnknown, "https://www.sahibinden.com/ilan/x-123456789", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractID(tt.portal, tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractID(%s, %q) = (%q, %v); want (%q, %v)", tt.portal, tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSearchURL(t *testing.T) {
	c := models.SearchCriteria{
		Region:   "Kadıköy",
		PriceMin: 1000000,
		PriceMax: 5000000,
		Kind:     models.KindApartment,
	}

	got, err := SearchURL(models.PortalSahibinden, c)
	require.NoError(t, err)
	assert.Equal(t, "https://www.sahibinden.com/satilik-daire/kadikoy?price_max=5000000&price_min=1000000", got)

	got, err = SearchURL(models.PortalHepsiemlak, c)
	require.NoError(t, err)
	assert.Equal(t, "https://www.hepsiemlak.com/kadikoy-satilik/daire?priceMax=5000000&priceMin=1000000", got)

	got, err = SearchURL(models.PortalEmlakjet, models.SearchCriteria{Region: "Beşiktaş"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.emlakjet.com/satilik-konut/besiktas", got)
}

func TestSearchURLUnsupported(t *testing.T) {
	_, err := SearchURL(models.PortalEmlakjet, models.SearchCriteria{Region: "Şişli", Kind: models.KindCommercial})
	assert.ErrorIs(t, err, ErrTemplateUnsupported)

	_, err = SearchURL(models.PortalSahibinden, models.SearchCriteria{Region: "  "})
	assert.ErrorIs(t, err, ErrTemplateUnsupported)

	_, err = SearchURL(models.PortalUnknown, models.SearchCriteria{Region: "Şişli"})
	assert.ErrorIs(t, err, ErrUnknownPortal)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "kadikoy-istanbul", Slug("Kadıköy, İstanbul"))
	assert.Equal(t, "sisli", Slug("ŞİŞLİ"))
	assert.Equal(t, "", Slug(" - "))
}
