package models

// RunReport summarises one monitoring pass across all users.
type RunReport struct {
	Users           int
	FailedUsers     int
	Criteria        int
	SearchesRun     int
	SearchesFailed  int
	PreviewsFound   int
	NewListings     int
	NotificationsOK int

	// Price statistics over new listings priced in Currency.
	Currency      string
	PricedCount   int
	AveragePrice  float64
	MinPrice      float64
	MaxPrice      float64
	MostExpensive *Discovery

	ByPortal   map[Portal]int
	ByDistrict map[string]int
}
