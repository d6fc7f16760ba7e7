package storage

import (
	"context"
	"errors"

	"emlak-ingest/models"
)

// ErrNotFound is returned when a document or task does not exist (or expired).
var ErrNotFound = errors.New("not found")

// DocumentStore is the per-user inventory store: users, customers,
// properties, monitoring rules and notifications.
type DocumentStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListCustomers(ctx context.Context, userID string) ([]models.Customer, error)
	ListProperties(ctx context.Context, userID string) ([]models.Property, error)
	ListEnabledRules(ctx context.Context, userID string) ([]models.MonitorRule, error)
	CreateProperty(ctx context.Context, p *models.Property) error
	UpdatePropertyPhotos(ctx context.Context, propertyID string, photos []string) error
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// TaskStore keeps import tasks for the preview → confirm round trip.
type TaskStore interface {
	SaveTask(ctx context.Context, t *models.ImportTask) error
	GetTask(ctx context.Context, id string) (*models.ImportTask, error)
}

// PhotoStore uploads photo bytes to durable storage and returns their URL.
type PhotoStore interface {
	UploadPhoto(ctx context.Context, propertyID string, data []byte, contentType string) (string, error)
}

// RunLogWriter persists one row per monitoring pass per user.
type RunLogWriter interface {
	WriteRuns(ctx context.Context, runs []*models.MonitorRun) error
	RecentRuns(ctx context.Context, limit int) ([]*models.MonitorRun, error)
	Close() error
}

// DiscoveryWriter records newly discovered listings from a monitoring pass.
type DiscoveryWriter interface {
	WriteDiscoveries(discoveries []models.Discovery) error
	Close() error
}
