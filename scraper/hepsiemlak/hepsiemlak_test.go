package hepsiemlak

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emlak-ingest/models"
	"emlak-ingest/scraper/browser"
	"emlak-ingest/utils"
)

const (
	detailURL = "https://www.hepsiemlak.com/kadikoy-satilik/daire/86970-1234"
	searchURL = "https://www.hepsiemlak.com/kadikoy-satilik/daire"
)

func row(label, value string) *browser.FakePage {
	return &browser.FakePage{Texts: map[string]string{"span.txt": label, "span:last-child": value}}
}

func acquire(t *testing.T, url string, page *browser.FakePage) browser.Session {
	t.Helper()
	b := browser.NewFakeBrowser()
	b.Pages[url] = page
	s, err := b.Acquire(context.Background(), models.PortalHepsiemlak)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestScrapeDetail(t *testing.T) {
	page := &browser.FakePage{
		Texts: map[string]string{
			detailLandmark:               "Bahariye Caddesine Yakın Satılık Daire",
			".det-title-bottom .price":   "₺ 3.750.000",
			".det-adress .short-address": "İstanbul / Kadıköy / Osmanağa Mah.",
			".det-adress .address-text":  "Bahariye Cd. No:12",
			".description-content":       "Metroya 5 dk.",
		},
		Children: map[string][]*browser.FakePage{
			"ul.adv-info-list li": {
				row("İlan no", "86970-1234"),
				row("Oda + Salon Sayısı", "2 + 1"),
				row("Brüt / Net M2", "110 m2 / 95 m2"),
				row("Konut Tipi", "Daire"),
			},
			".spec-features li.active": {browser.Elem("Doğalgaz", nil), browser.Elem("Asansör", nil)},
			".det-slider img": {
				browser.Elem("", map[string]string{"data-src": "https://img.hepsiemlak.com/a.jpg"}),
				browser.Elem("", map[string]string{"src": "data:image/gif;base64,R0lGOD"}),
			},
		},
	}

	got, err := New(utils.NewNopLogger()).ScrapeDetail(context.Background(), acquire(t, detailURL, page), detailURL)
	require.NoError(t, err)

	assert.Equal(t, "Bahariye Caddesine Yakın Satılık Daire", got.Title)
	assert.Equal(t, models.Price{Amount: 3750000, Currency: "TRY"}, got.Price)
	assert.Equal(t, models.KindApartment, got.Kind)
	assert.Equal(t, models.Location{City: "İstanbul", District: "Kadıköy", Neighborhood: "Osmanağa Mah.", Address: "Bahariye Cd. No:12"}, got.Location)
	assert.Equal(t, 110.0, got.AreaM2)
	assert.Equal(t, "2+1", got.Rooms)
	assert.Equal(t, []string{"Asansör", "Doğalgaz"}, got.Features)
	assert.Equal(t, []string{"https://img.hepsiemlak.com/a.jpg"}, got.PhotoURLs)
	assert.Equal(t, "86970-1234", got.SourceID)
	assert.Equal(t, models.PortalHepsiemlak, got.SourcePortal)
}

func TestScrapeDetailStructureChanged(t *testing.T) {
	page := &browser.FakePage{Texts: map[string]string{"h1": "Sayfa"}}
	_, err := New(utils.NewNopLogger()).ScrapeDetail(context.Background(), acquire(t, detailURL, page), detailURL)
	assert.ErrorIs(t, err, browser.ErrStructureChanged)
}

func card(title, href string) *browser.FakePage {
	return &browser.FakePage{
		Texts: map[string]string{
			"h3":                  title,
			".list-view-price":    "4.200.000 TL",
			".list-view-location": "İstanbul / Kadıköy",
		},
		Attrs: map[string]map[string]string{"a.card-link": {"href": href}},
	}
}

func TestScrapeSearchResults(t *testing.T) {
	page := &browser.FakePage{
		Texts:   map[string]string{"body": "Kadıköy satılık daire"},
		Visible: []string{resultsLandmark},
		Children: map[string][]*browser.FakePage{resultCard: {
			card("Moda 3+1", "https://www.hepsiemlak.com/kadikoy-satilik/daire/86970-1"),
			card("", "https://www.hepsiemlak.com/kadikoy-satilik/daire/86970-2"),
			card("Yeldeğirmeni 1+1", ""),
			card("Suadiye 4+1", "https://www.hepsiemlak.com/kadikoy-satilik/daire/86970-3"),
		}},
	}

	got, err := New(utils.NewNopLogger()).ScrapeSearchResults(context.Background(), acquire(t, searchURL, page), searchURL, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "86970-1", got[0].SourceID)
	assert.Equal(t, models.Location{City: "İstanbul", District: "Kadıköy"}, got[0].Location)
	assert.Equal(t, 4200000.0, got[0].Price.Amount)
	assert.Equal(t, "Suadiye 4+1", got[1].Title)
}

func TestScrapeSearchResultsEmptyState(t *testing.T) {
	page := &browser.FakePage{Texts: map[string]string{"body": "Aradığınız kriterlere uygun ilan bulunamadı"}}

	got, err := New(utils.NewNopLogger()).ScrapeSearchResults(context.Background(), acquire(t, searchURL, page), searchURL, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
