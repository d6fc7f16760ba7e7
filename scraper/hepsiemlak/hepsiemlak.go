// Package hepsiemlak extracts listings from hepsiemlak.com pages.
package hepsiemlak

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
	detailLandmark  = ".det-title-upper h1"
	resultsLandmark = ".list-items-container"
	resultCard      = "li.listing-item"
)

var emptyStatePhrases = []string{
	"aradığınız kriterlere uygun ilan bulunamadı",
	"aradığınız kriterlere uygun sonuç bulunamadı",
	"ilan bulunamadı",
}

// Extractor reads hepsiemlak detail and search-result pages.
type Extractor struct {
	logger *utils.Logger
}

// New creates a hepsiemlak Extractor.
func New(logger *utils.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) Portal() models.Portal {
	return models.PortalHepsiemlak
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
	priceText := browser.FirstText(ctx, r, ".det-title-bottom .price", ".price-wrapper .price")
	attrs := browser.Labeled(ctx, r, "ul.adv-info-list li", "span.txt", "span:last-child")

	// "İstanbul / Kadıköy / Caferağa Mah." and an optional street line
	loc := normalize.LocationFromParts(normalize.SplitLocation(browser.FirstText(ctx, r, ".det-adress .short-address", ".short-address")))
	loc.Address = browser.FirstText(ctx, r, ".det-adress .address-text")

	id, ok := portal.ExtractID(models.PortalHepsiemlak, url)
	if !ok {
		id = browser.Pick(attrs, "ilan no")
	}

	listing := models.Listing{
		Title:        title,
		Price:        normalize.PriceText(priceText),
		Kind:         normalize.InferKind(title+" "+browser.Pick(attrs, "konut tipi", "kategori"), url),
		Location:     loc,
		AreaM2:       normalize.NormalizeAreaText(browser.Pick(attrs, "brüt / net m2", "brüt m2", "net m2", "m2")),
		Rooms:        normalize.RoomsToken(browser.Pick(attrs, "oda + salon sayısı", "oda sayısı")),
		Features:     normalize.FeatureSet(browser.Texts(ctx, r, ".spec-features li.active")),
		Description:  browser.FirstText(ctx, r, ".description-content", ".det-description"),
		PhotoURLs:    normalize.UniqueURLs(browser.Attrs(ctx, r, ".det-slider img", "data-src", "src")),
		SourceURL:    url,
		SourcePortal: models.PortalHepsiemlak,
		SourceID:     id,
		ScrapedAt:    time.Now().UTC(),
	}

	e.logger.Debug("[hepsiemlak] Extracted %q (id=%s, %d photos)", listing.Title, listing.SourceID, len(listing.PhotoURLs))
	return listing, nil
}

func (e *Extractor) ScrapeSearchResults(ctx context.Context, page browser.Page, url string, maxResults int) ([]models.ListingPreview, error) {
	if err := page.Navigate(ctx, url); err != nil {
		return nil, err
	}
	r := page.Reader()

	if browser.ContainsAny(ctx, r, emptyStatePhrases...) {
		e.logger.Info("[hepsiemlak] No results for %s", url)
		return []models.ListingPreview{}, nil
	}
	if err := page.WaitVisible(ctx, resultsLandmark); err != nil {
		if errors.Is(err, browser.ErrStructureChanged) {
			e.logger.Warn("[hepsiemlak] Result list missing on %s: %v", url, err)
			return []models.ListingPreview{}, nil
		}
		return nil, err
	}

	cards, err := r.All(ctx, resultCard)
	if err != nil {
		e.logger.Warn("[hepsiemlak] Could not read result cards on %s: %v", url, err)
		return []models.ListingPreview{}, nil
	}

	previews := make([]models.ListingPreview, 0, len(cards))
	for _, card := range cards {
		if maxResults > 0 && len(previews) >= maxResults {
			break
		}
		title := browser.FirstText(ctx, card, ".list-view-title h3", "h3")
		link := browser.FirstAttr(ctx, card, "href", "a.card-link", "a")
		if title == "" || link == "" {
			continue
		}
		id, _ := portal.ExtractID(models.PortalHepsiemlak, link)

		previews = append(previews, models.ListingPreview{
			Title:     title,
			Price:     normalize.PriceText(browser.FirstText(ctx, card, ".list-view-price")),
			Location:  normalize.LocationFromParts(normalize.SplitLocation(browser.FirstText(ctx, card, ".list-view-location"))),
			Thumbnail: browser.FirstAttr(ctx, card, "data-src", "img.list-view-img"),
			SourceURL: link,
			SourceID:  id,
		})
	}

	e.logger.Info("[hepsiemlak] %d previews from %s", len(previews), url)
	return previews, nil
}
