// Package sahibinden extracts listings from sahibinden.com pages.
package sahibinden

import (
	"context"
	"errors"
	"time"

	"emlak-ingest/models"
	"emlak-ingest/scraper/browser"
	"emlak-ingest/scraper/normalize"
	"emlak-ingest/scraper/portal"
	"emlak-ingest/utils"
)

const (
	detailLandmark  = ".classifiedDetailTitle"
	resultsLandmark = "#searchResultsTable"
	resultCard      = "tr.searchResultsItem"
)

var emptyStatePhrases = []string{
	"aramanızla eşleşen ilan bulunamadı",
	"arama kriterlerinize uygun ilan bulunamadı",
	"sonuç bulunamadı",
}

// Extractor reads sahibinden detail and search-result pages.
type Extractor struct {
	logger *utils.Logger
}

// New creates a sahibinden Extractor.
func New(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Portal returns models.PortalSahibinden.
func (e *Extractor) Portal() models.Portal {
	return models.PortalSahibinden
}

// ScrapeDetail loads a listing page and extracts every field it can.
// Missing fields are left empty.
func (e *Extractor) ScrapeDetail(ctx context.Context, page browser.Page, url string) (models.Listing, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return models.Listing{}, err
	}
	if err := page.WaitVisible(ctx, detailLandmark); err != nil {
		return models.Listing{}, err
	}
	r := page.Reader()

	title := browser.FirstText(ctx, r, ".classifiedDetailTitle h1", detailLandmark)
	priceText := browser.FirstText(ctx, r, ".classifiedInfo > h3", ".classified-price-wrapper")
	crumbs := browser.Texts(ctx, r, ".classifiedInfo > h2 a")
	attrs := browser.Labeled(ctx, r, ".classifiedInfoList li", "strong", "span")

	id, ok := portal.ExtractID(models.PortalSahibinden, url)
	if !ok {
		id = browser.Pick(attrs, "ilan no")
	}

	listing := models.Listing{
		Title:        title,
		Price:        normalize.PriceText(priceText),
		Kind:         normalize.InferKind(title+" "+browser.Pick(attrs, "emlak tipi"), url),
		Location:     normalize.LocationFromParts(crumbs),
		AreaM2:       normalize.NormalizeAreaText(browser.Pick(attrs, "m² (brüt)", "m² (net)", "m²")),
		Rooms:        normalize.RoomsToken(browser.Pick(attrs, "oda sayısı")),
		Features:     normalize.FeatureSet(browser.Texts(ctx, r, "#classifiedProperties li.selected")),
		Description:  browser.FirstText(ctx, r, "#classifiedDescription"),
		PhotoURLs:    normalize.UniqueURLs(browser.Attrs(ctx, r, ".classifiedDetailPhotos img", "data-src", "src")),
		SourceURL:    url,
		SourcePortal: models.PortalSahibinden,
		SourceID:     id,
		ScrapedAt:    time.Now().UTC(),
	}

	e.logger.Debug("[sahibinden] Extracted %q (id=%s, %d photos)", listing.Title, listing.SourceID, len(listing.PhotoURLs))
	return listing, nil
}

// ScrapeSearchResults reads up to maxResults previews from a search page.
// A no-results page or a changed layout yields an empty list.
func (e *Extractor) ScrapeSearchResults(ctx context.Context, page browser.Page, url string, maxResults int) ([]models.ListingPreview, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return nil, err
	}
	r := page.Reader()

	if browser.ContainsAny(ctx, r, emptyStatePhrases...) {
		e.logger.Info("[sahibinden] No results for %s", url)
		return []models.ListingPreview{}, nil
	}
	if err := page.WaitVisible(ctx, resultsLandmark); err != nil {
		if errors.Is(err, browser.ErrStructureChanged) {
			e.logger.Warn("[sahibinden] Results table missing on %s: %v", url, err)
			return []models.ListingPreview{}, nil
		}
		return nil, err
	}

	cards, err := r.All(ctx, resultCard)
	if err != nil {
		e.logger.Warn("[sahibinden] Could not read result cards on %s: %v", url, err)
		return []models.ListingPreview{}, nil
	}

	previews := make([]models.ListingPreview, 0, len(cards))
	for _, card := range cards {
		if maxResults > 0 && len(previews) >= maxResults {
			break
		}
		p, ok := e.preview(ctx, card)
		if !ok {
			continue
		}
		previews = append(previews, p)
	}

	e.logger.Info("[sahibinden] %d previews from %s", len(previews), url)
	return previews, nil
}

func (e *Extractor) preview(ctx context.Context, card browser.PageReader) (models.ListingPreview, bool) {
	title := browser.FirstText(ctx, card, "a.classifiedTitle", ".searchResultsTitleValue")
	link := browser.FirstAttr(ctx, card, "href", "a.classifiedTitle", ".searchResultsTitleValue a")
	if title == "" || link == "" {
		return models.ListingPreview{}, false
	}

	id := browser.FirstAttr(ctx, card, "data-id", "")
	if id == "" {
		id, _ = portal.ExtractID(models.PortalSahibinden, link)
	}

	var loc models.Location
	if raw, err := card.Text(ctx, ".searchResultsLocationValue"); err == nil {
		parts := normalize.SplitLocation(raw)
		if len(parts) > 0 {
			loc.District = parts[0]
		}
		if len(parts) > 1 {
			loc.Neighborhood = parts[1]
		}
	}

	return models.ListingPreview{
		Title:     title,
		Price:     normalize.PriceText(browser.FirstText(ctx, card, ".searchResultsPriceValue")),
		Location:  loc,
		Thumbnail: browser.FirstAttr(ctx, card, "src", ".searchResultsLargeThumbnail img", "img"),
		SourceURL: link,
		SourceID:  id,
	}, true
}
