// Package emlakjet extracts listings from emlakjet.com pages.
package emlakjet

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

// emlakjet renders hashed CSS-module class names, so selectors match on the
// stable "styles_<name>" prefix.
const (
	detailLandmark  = "h1[class*='styles_title']"
	resultsLandmark = "[class*='styles_listingContainer']"
	resultCard      = "a[class*='styles_wrapper']"
)

var emptyStatePhrases = []string{
	"aradığınız kriterlere uygun ilan bulunamadı",
	"aramanıza uygun ilan bulunamadı",
	"sonuç bulunamadı",
}

// Extractor reads emlakjet detail and search-result pages.
type Extractor struct {
	logger *utils.Logger
}

func New(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) Portal() models.Portal {
	return models.PortalEmlakjet
}

func (e *Extractor) ScrapeDetail(ctx context.Context, page browser.Page, url string) (models.Listing, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return models.Listing{}, err
	}
	if err := page.WaitVisible(ctx, detailLandmark); err != nil {
		return models.Listing{}, err
	}
	r := page.Reader()

	title := browser.FirstText(ctx, r, detailLandmark)
	priceText := browser.FirstText(ctx, r, "[class*='styles_price']")
	attrs := browser.Labeled(ctx, r,
		"[class*='styles_tableRow']",
		"[class*='styles_tableColumn']:first-child",
		"[class*='styles_tableColumn']:last-child",
	)

	// "İstanbul - Kadıköy - Caferağa Mahallesi"
	loc := normalize.LocationFromParts(normalize.SplitLocation(browser.FirstText(ctx, r, "[class*='styles_location']")))

	id, ok := portal.ExtractID(models.PortalEmlakjet, url)
	if !ok {
		id = browser.Pick(attrs, "ilan numarası", "ilan no")
	}

	listing := models.Listing{
		Title:        title,
		Price:        normalize.PriceText(priceText),
		Kind:         normalize.InferKind(title+" "+browser.Pick(attrs, "kategorisi", "tipi"), url),
		Location:     loc,
		AreaM2:       normalize.NormalizeAreaText(browser.Pick(attrs, "brüt metrekare", "net metrekare", "metrekare")),
		Rooms:        normalize.RoomsToken(browser.Pick(attrs, "oda sayısı")),
		Features:     normalize.FeatureSet(browser.Texts(ctx, r, "[class*='styles_featureList'] li")),
		Description:  browser.FirstText(ctx, r, "[class*='styles_description']"),
		PhotoURLs:    normalize.UniqueURLs(browser.Attrs(ctx, r, "[class*='styles_gallery'] img", "src", "data-src")),
		SourceURL:    url,
		SourcePortal: models.PortalEmlakjet,
		SourceID:     id,
		ScrapedAt:    time.Now().UTC(),
	}

	e.logger.Debug("[emlakjet] Extracted %q (id=%s, %d photos)", listing.Title, listing.SourceID, len(listing.PhotoURLs))
	return listing, nil
}

func (e *Extractor) ScrapeSearchResults(ctx context.Context, page browser.Page, url string, maxResults int) ([]models.ListingPreview, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return nil, err
	}
	r := page.Reader()

	if browser.ContainsAny(ctx, r, emptyStatePhrases...) {
		e.logger.Info("[emlakjet] No results for %s", url)
		return []models.ListingPreview{}, nil
	}
	if err := page.WaitVisible(ctx, resultsLandmark); err != nil {
		if errors.Is(err, browser.ErrStructureChanged) {
			e.logger.Warn("[emlakjet] Listing container missing on %s: %v", url, err)
			return []models.ListingPreview{}, nil
		}
		return nil, err
	}

	cards, err := r.All(ctx, resultCard)
	if err != nil {
		e.logger.Warn("[emlakjet] Could not read result cards on %s: %v", url, err)
		return []models.ListingPreview{}, nil
	}

	previews := make([]models.ListingPreview, 0, len(cards))
	for _, card := range cards {
		if maxResults > 0 && len(previews) >= maxResults {
			break
		}
		// the card is the anchor itself
		title := browser.FirstText(ctx, card, "h3")
		link := browser.FirstAttr(ctx, card, "href", "")
		if title == "" || link == "" {
			continue
		}
		id, _ := portal.ExtractID(models.PortalEmlakjet, link)

		previews = append(previews, models.ListingPreview{
			Title:     title,
			Price:     normalize.PriceText(browser.FirstText(ctx, card, "[class*='styles_price']")),
			Location:  normalize.LocationFromParts(normalize.SplitLocation(browser.FirstText(ctx, card, "[class*='styles_location']"))),
			Thumbnail: browser.FirstAttr(ctx, card, "src", "img"),
			SourceURL: link,
			SourceID:  id,
		})
	}

	e.logger.Info("[emlakjet] %d previews from %s", len(previews), url)
	return previews, nil
}
