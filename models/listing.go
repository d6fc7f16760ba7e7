package models

import "time"

// Portal identifies one of the supported listing websites.
type Portal string

const (
	PortalSahibinden Portal = "sahibinden"
	PortalHepsiemlak Portal = "hepsiemlak"
	PortalEmlakjet   Portal = "emlakjet"
	PortalUnknown    Portal = "unknown"
)

// AllPortals is the full portal set targeted by derived criteria.
var AllPortals = []Portal{PortalSahibinden, PortalHepsiemlak, PortalEmlakjet}

// PropertyKind is a coarse, heuristically inferred property category.
// KindOther means "unclassified", not a real category.
type PropertyKind string

const (
	KindApartment  PropertyKind = "apartment"
	KindVilla      PropertyKind = "villa"
	KindLand       PropertyKind = "land"
	KindCommercial PropertyKind = "commercial"
	KindOther      PropertyKind = "other"
)

// Price is an amount in a detected currency. Amount is 0 when unparseable.
type Price struct {
	Amount   float64 `json:"amount" bson:"amount"`
	Currency string  `json:"currency" bson:"currency"`
}

// Location is the breadcrumb-derived address of a listing.
type Location struct {
	City         string `json:"city" bson:"city"`
	District     string `json:"district,omitempty" bson:"district,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty" bson:"neighborhood,omitempty"`
	Address      string `json:"address,omitempty" bson:"address,omitempty"`
}

// Listing is the canonical, portal-agnostic record produced by an extractor.
// It is not mutated after extraction.
type Listing struct {
	Title        string       `json:"title"`
	Price        Price        `json:"price"`
	Kind         PropertyKind `json:"kind"`
	Location     Location     `json:"location"`
	AreaM2       float64      `json:"areaM2,omitempty"`
	Rooms        string       `json:"rooms,omitempty"`
	Features     []string     `json:"features,omitempty"`
	Description  string       `json:"description,omitempty"`
	PhotoURLs    []string     `json:"photoUrls,omitempty"`
	SourceURL    string       `json:"sourceUrl"`
	SourcePortal Portal       `json:"sourcePortal"`
	SourceID     string       `json:"sourceId,omitempty"`
	ScrapedAt    time.Time    `json:"scrapedAt"`
}

// ListingPreview is the cheap subset of a Listing read from a search-results card.
type ListingPreview struct {
	Title     string   `json:"title"`
	Price     Price    `json:"price"`
	Location  Location `json:"location"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	SourceURL string   `json:"sourceUrl"`
	SourceID  string   `json:"sourceId,omitempty"`
}

// NoveltyKey is the identity used for "already seen" checks. Source IDs are
// only unique within a portal, so they are prefixed with it; the source URL
// is used as is when the portal exposes no stable ID.
func (p ListingPreview) NoveltyKey(portal Portal) string {
	if p.SourceID != "" {
		return SourceKey(portal, p.SourceID)
	}
	return p.SourceURL
}

// SourceKey scopes a portal listing ID to its portal.
func SourceKey(portal Portal, id string) string {
	return string(portal) + ":" + id
}
