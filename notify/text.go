package notify

import (
	"fmt"
	"strings"

	"emlak-ingest/models"
)

// NewListingText renders the message sent for a newly discovered listing.
func NewListingText(p models.Portal, preview models.ListingPreview, c models.SearchCriteria) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Yeni ilan (%s): %s\n", p, preview.Title)
	fmt.Fprintf(&b, "Fiyat: %s\n", formatPrice(preview.Price))
	if loc := formatLocation(preview.Location); loc != "" {
		fmt.Fprintf(&b, "Konum: %s\n", loc)
	}
	if c.Provenance == models.ProvenanceDerived && c.CustomerID != "" {
		fmt.Fprintf(&b, "Müşteri tercihi: %s\n", c.CustomerID)
	}
	b.WriteString(preview.SourceURL)
	return b.String()
}

// PropertyCreatedText renders the message sent when an import finishes.
func PropertyCreatedText(t models.ImportTask) string {
	msg := fmt.Sprintf("İlan portföyünüze eklendi: %s", t.Listing.Title)
	if t.PhotosRequested > 0 {
		msg += fmt.Sprintf(" (%d/%d fotoğraf)", t.PhotosStored, t.PhotosRequested)
	}
	return msg
}

func formatPrice(p models.Price) string {
	if p.Amount <= 0 {
		return "belirtilmemiş"
	}
	return fmt.Sprintf("%.0f %s", p.Amount, p.Currency)
}

func formatLocation(l models.Location) string {
	var parts []string
	for _, s := range []string{l.Neighborhood, l.District, l.City} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
