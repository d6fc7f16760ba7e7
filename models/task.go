package models

import "time"

// TaskState is the lifecycle of an ImportTask.
type TaskState string

const (
	TaskPreviewed          TaskState = "previewed"
	TaskConfirmed          TaskState = "confirmed"
	TaskSucceeded          TaskState = "succeeded"
	TaskPartiallySucceeded TaskState = "partially-succeeded"
	TaskFailed             TaskState = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskPartiallySucceeded || s == TaskFailed
}

// ImportTask turns a confirmed scraped Listing into an inventory record.
type ImportTask struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Listing         Listing   `json:"listing"`
	FetchPhotos     bool      `json:"fetchPhotos"`
	State           TaskState `json:"state"`
	PropertyID      string    `json:"propertyId,omitempty"`
	PhotosRequested int       `json:"photosRequested,omitempty"`
	PhotosStored    int       `json:"photosStored,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ImportJob is the queued payload for the confirm phase.
type ImportJob struct {
	TaskID        string  `json:"taskId"`
	UserID        string  `json:"userId"`
	Scraped       Listing `json:"scraped"`
	PhotoDownload bool    `json:"photoDownload"`
}

// MonitorRun is the per-user summary of one monitoring pass.
type MonitorRun struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"userId"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	CriteriaCount   int       `json:"criteriaCount"`
	SearchesRun     int       `json:"searchesRun"`
	SearchesFailed  int       `json:"searchesFailed"`
	PreviewsFound   int       `json:"previewsFound"`
	NewListings     int       `json:"newListings"`
	NotificationsOK int       `json:"notificationsOk"`
	Errors          int       `json:"errors"`
}

// Discovery is a listing preview seen for the first time during a monitoring
// pass, with the criteria that matched it.
type Discovery struct {
	UserID       string
	Portal       Portal
	Preview      ListingPreview
	Criteria     SearchCriteria
	DiscoveredAt time.Time
}
