package models

import "time"

// Provenance records where a SearchCriteria came from.
type Provenance string

const (
	ProvenanceManual  Provenance = "manual"
	ProvenanceDerived Provenance = "derived-from-customer"
)

// SearchCriteria is one fully specified search. It is rebuilt on every
// monitoring run and never persisted.
type SearchCriteria struct {
	Region     string
	PriceMin   float64
	PriceMax   float64
	Kind       PropertyKind // empty means any kind
	Portals    []Portal
	Provenance Provenance
	CustomerID string
	RuleID     string
}

// MonitorRule is a manually configured monitoring rule.
type MonitorRule struct {
	ID       string       `bson:"_id,omitempty" json:"id"`
	UserID   string       `bson:"user_id" json:"userId"`
	Region   string       `bson:"region" json:"region"`
	PriceMin float64      `bson:"price_min" json:"priceMin"`
	PriceMax float64      `bson:"price_max" json:"priceMax"`
	Kind     PropertyKind `bson:"kind,omitempty" json:"kind,omitempty"`
	Portals  []Portal     `bson:"portals" json:"portals"`
	Enabled  bool         `bson:"enabled" json:"enabled"`
}

// Customer is a saved customer with search preferences.
type Customer struct {
	ID        string         `bson:"_id,omitempty" json:"id"`
	UserID    string         `bson:"user_id" json:"userId"`
	Name      string         `bson:"name" json:"name"`
	Locations []string       `bson:"locations" json:"locations"`
	Kinds     []PropertyKind `bson:"kinds" json:"kinds"`
	PriceMin  float64        `bson:"price_min" json:"priceMin"`
	PriceMax  float64        `bson:"price_max" json:"priceMax"`
}

// User owns an inventory and receives notifications.
type User struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	Name        string `bson:"name" json:"name"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	Destination string `bson:"destination,omitempty" json:"destination,omitempty"`
}

// Property is an inventory record owned by a user.
type Property struct {
	ID           string       `bson:"_id,omitempty" json:"id"`
	UserID       string       `bson:"user_id" json:"userId"`
	Title        string       `bson:"title" json:"title"`
	Price        Price        `bson:"price" json:"price"`
	Kind         PropertyKind `bson:"kind" json:"kind"`
	Location     Location     `bson:"location" json:"location"`
	AreaM2       float64      `bson:"area_m2,omitempty" json:"areaM2,omitempty"`
	Rooms        string       `bson:"rooms,omitempty" json:"rooms,omitempty"`
	Features     []string     `bson:"features,omitempty" json:"features,omitempty"`
	Description  string       `bson:"description,omitempty" json:"description,omitempty"`
	Photos       []string     `bson:"photos" json:"photos"`
	SourceURL    string       `bson:"source_url,omitempty" json:"sourceUrl,omitempty"`
	SourcePortal Portal       `bson:"source_portal,omitempty" json:"sourcePortal,omitempty"`
	SourceID     string       `bson:"source_id,omitempty" json:"sourceId,omitempty"`
	CreatedAt    time.Time    `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `bson:"updated_at" json:"updatedAt"`
}

// PropertyFromListing builds an inventory record with an empty photo list.
func PropertyFromListing(userID string, l Listing) *Property {
	return &Property{
		UserID:       userID,
		Title:        l.Title,
		Price:        l.Price,
		Kind:         l.Kind,
		Location:     l.Location,
		AreaM2:       l.AreaM2,
		Rooms:        l.Rooms,
		Features:     l.Features,
		Description:  l.Description,
		Photos:       []string{},
		SourceURL:    l.SourceURL,
		SourcePortal: l.SourcePortal,
		SourceID:     l.SourceID,
	}
}

// Notification is written once per newly discovered listing per criterion.
type Notification struct {
	ID         string          `bson:"_id,omitempty" json:"id"`
	UserID     string          `bson:"user_id" json:"userId"`
	Kind       string          `bson:"kind" json:"kind"`
	Message    string          `bson:"message" json:"message"`
	Portal     Portal          `bson:"portal,omitempty" json:"portal,omitempty"`
	SourceID   string          `bson:"source_id,omitempty" json:"sourceId,omitempty"`
	Preview    *ListingPreview `bson:"preview,omitempty" json:"preview,omitempty"`
	CustomerID string          `bson:"customer_id,omitempty" json:"customerId,omitempty"`
	RuleID     string          `bson:"rule_id,omitempty" json:"ruleId,omitempty"`
	Delivered  bool            `bson:"delivered" json:"delivered"`
	CreatedAt  time.Time       `bson:"created_at" json:"createdAt"`
}
