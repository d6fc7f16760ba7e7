package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"emlak-ingest/metrics"
	"emlak-ingest/models"
	"emlak-ingest/notify"
	"emlak-ingest/photo"
	"emlak-ingest/queue"
	"emlak-ingest/scraper/portal"
	"emlak-ingest/storage"
	"emlak-ingest/utils"
)

var (
	// ErrTaskNotFound is returned for unknown or expired import tasks.
	ErrTaskNotFound = errors.New("import task not found")
	// ErrInvalidRequest marks a malformed preview or confirm request.
	ErrInvalidRequest = errors.New("invalid import request")
	// ErrTaskConfirmed rejects a second confirmation of the same task.
	ErrTaskConfirmed = errors.New("import task already confirmed")
)

// MaxSimilar caps the similar-inventory warning list returned by Preview.
const MaxSimilar = 5

// NotificationPropertyCreated is the notification kind written after import.
const NotificationPropertyCreated = "property.created"

// DetailScraper extracts one listing by URL.
type DetailScraper interface {
	ScrapeDetail(ctx context.Context, url string) (models.Listing, error)
}

type PreviewRequest struct {
	URL    string `json:"url"`
	UserID string `json:"userId"`
}

// SimilarProperty is the trimmed view of an inventory item that looks like
// the scraped listing.
type SimilarProperty struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Location models.Location `json:"location"`
}

type PreviewResult struct {
	TaskID  string            `json:"taskId"`
	Scraped models.Listing    `json:"scraped"`
	Similar []SimilarProperty `json:"similar"`
}

// ConfirmRequest confirms either a stored preview (TaskID) or a listing the
// caller scraped earlier (Scraped).
type ConfirmRequest struct {
	TaskID        string          `json:"taskId,omitempty"`
	Scraped       *models.Listing `json:"scraped,omitempty"`
	UserID        string          `json:"userId"`
	PhotoDownload bool            `json:"photoDownload"`
}

// Importer runs the preview → confirm protocol. Confirm only dispatches;
// Handle does the work on the queue side.
type Importer struct {
	scraper    DetailScraper
	store      storage.DocumentStore
	tasks      storage.TaskStore
	photos     storage.PhotoStore
	fetcher    *photo.Fetcher
	resizer    *photo.Resizer
	dispatcher queue.Dispatcher
	sink       notify.Sink
	dedup      *DedupMatcher
	metrics    *metrics.Metrics
	logger     *utils.Logger
	now        func() time.Time
}

func NewImporter(
	scraper DetailScraper,
	store storage.DocumentStore,
	tasks storage.TaskStore,
	photos storage.PhotoStore,
	fetcher *photo.Fetcher,
	dispatcher queue.Dispatcher,
	sink notify.Sink,
	logger *utils.Logger,
) *Importer {
	return &Importer{
		scraper:    scraper,
		store:      store,
		tasks:      tasks,
		photos:     photos,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		sink:       sink,
		dedup:      NewDedupMatcher(),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithResizer makes Handle fit and recompress photos before upload.
func (im *Importer) WithResizer(r *photo.Resizer) *Importer {
	im.resizer = r
	return im
}

func (im *Importer) WithMetrics(m *metrics.Metrics) *Importer {
	im.metrics = m
	return im
}

// Preview scrapes url and reports inventory items that look like it.
// The scraped listing is kept as a previewed task so Confirm can refer to it.
func (im *Importer) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" || req.UserID == "" {
		return PreviewResult{}, fmt.Errorf("url and userId are required: %w", ErrInvalidRequest)
	}
	if portal.Resolve(url) == models.PortalUnknown {
		return PreviewResult{}, fmt.Errorf("%q: %w", url, portal.ErrUnknownPortal)
	}

	listing, err := im.scraper.ScrapeDetail(ctx, url)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("preview %s: %w", url, err)
	}

	inventory, err := im.store.ListProperties(ctx, req.UserID)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("preview: load inventory: %w", err)
	}
	matches := im.dedup.Match(listing, inventory)
	if len(matches) > MaxSimilar {
		matches = matches[:MaxSimilar]
	}
	similar := make([]SimilarProperty, 0, len(matches))
	for _, p := range matches {
		similar = append(similar, SimilarProperty{ID: p.ID, Title: p.Title, Location: p.Location})
	}

	now := im.now()
	task := &models.ImportTask{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Listing:   listing,
		State:     models.TaskPreviewed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := im.tasks.SaveTask(ctx, task); err != nil {
		return PreviewResult{}, fmt.Errorf("preview: save task: %w", err)
	}

	im.logger.Info("[import] preview %s for user %s: %s, %d similar", task.ID, req.UserID, listing.SourcePortal, len(similar))
	return PreviewResult{TaskID: task.ID, Scraped: listing, Similar: similar}, nil
}

// Confirm marks the task confirmed and hands it to the queue.
func (im *Importer) Confirm(ctx context.Context, req ConfirmRequest) (*models.ImportTask, error) {
	task, err := im.taskFor(ctx, req)
	if err != nil {
		return nil, err
	}

	task.State = models.TaskConfirmed
	task.FetchPhotos = req.PhotoDownload
	task.UpdatedAt = im.now()
	if err := im.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("confirm: save task: %w", err)
	}

	job := models.ImportJob{
		TaskID:        task.ID,
		UserID:        task.UserID,
		Scraped:       task.Listing,
		PhotoDownload: task.FetchPhotos,
	}
	if err := im.dispatcher.Dispatch(ctx, job); err != nil {
		task.State = models.TaskFailed
		task.Error = err.Error()
		im.saveTask(ctx, task)
		return nil, fmt.Errorf("confirm: dispatch %s: %w", task.ID, err)
	}

	im.logger.Info("[import] task %s confirmed (photos: %v)", task.ID, task.FetchPhotos)
	return task, nil
}

func (im *Importer) taskFor(ctx context.Context, req ConfirmRequest) (*models.ImportTask, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("userId required: %w", ErrInvalidRequest)
	}
	if req.TaskID != "" {
		task, err := im.GetTask(ctx, req.TaskID)
		if err != nil {
			return nil, err
		}
		if task.UserID != req.UserID {
			return nil, fmt.Errorf("task %s: %w", req.TaskID, ErrTaskNotFound)
		}
		if task.State != models.TaskPreviewed {
			return nil, fmt.Errorf("task %s is %s: %w", task.ID, task.State, ErrTaskConfirmed)
		}
		return task, nil
	}

	if req.Scraped == nil {
		return nil, fmt.Errorf("taskId or scraped listing required: %w", ErrInvalidRequest)
	}
	now := im.now()
	return &models.ImportTask{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Listing:   *req.Scraped,
		State:     models.TaskPreviewed,
		CreatedAt: now,
	}, nil
}

// GetTask returns the current state of an import task.
func (im *Importer) GetTask(ctx context.Context, id string) (*models.ImportTask, error) {
	task, err := im.tasks.GetTask(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// AwaitTask polls the task every interval until it reaches a terminal
// state. When ctx ends first it returns the last state seen with ctx's error.
func (im *Importer) AwaitTask(ctx context.Context, id string, every time.Duration) (*models.ImportTask, error) {
	for {
		task, err := im.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.State.Terminal() {
			return task, nil
		}
		if err := utils.SleepContext(ctx, every); err != nil {
			return task, fmt.Errorf("await task %s (%s): %w", id, task.State, err)
		}
	}
}

// Handle is the queue handler. It creates the inventory record with no
// photos, then attaches whatever photos could be fetched. Only a failure to
// create the record is returned; everything after that is logged.
func (im *Importer) Handle(ctx context.Context, job models.ImportJob) error {
	task := im.loadTask(ctx, job)

	if task.PropertyID == "" {
		prop := models.PropertyFromListing(job.UserID, job.Scraped)
		if err := im.store.CreateProperty(ctx, prop); err != nil {
			task.State = models.TaskFailed
			task.Error = err.Error()
			im.saveTask(ctx, task)
			im.metrics.ImportCompleted(models.TaskFailed)
			return fmt.Errorf("import %s: create property: %w", job.TaskID, err)
		}
		task.PropertyID = prop.ID
		task.Error = ""
		im.saveTask(ctx, task)
		im.logger.Info("[import] task %s created property %s", task.ID, prop.ID)
	}

	task.State = models.TaskSucceeded
	if job.PhotoDownload && len(job.Scraped.PhotoURLs) > 0 {
		urls, requested := im.storePhotos(ctx, task.PropertyID, job.Scraped)
		if len(urls) > 0 {
			if err := im.store.UpdatePropertyPhotos(ctx, task.PropertyID, urls); err != nil {
				im.logger.Error("[import] task %s: attach photos: %v", task.ID, err)
				urls = nil
			}
		}
		task.PhotosRequested = requested
		task.PhotosStored = len(urls)
		if task.PhotosStored < requested {
			task.State = models.TaskPartiallySucceeded
		}
		im.metrics.PhotosFetched(task.PhotosStored, requested-task.PhotosStored)
	}

	im.saveTask(ctx, task)
	im.metrics.ImportCompleted(task.State)
	im.notifyCreated(ctx, task)
	return nil
}

func (im *Importer) loadTask(ctx context.Context, job models.ImportJob) *models.ImportTask {
	task, err := im.tasks.GetTask(ctx, job.TaskID)
	if err == nil {
		return task
	}
	if !errors.Is(err, storage.ErrNotFound) {
		im.logger.Warn("[import] task %s: load: %v", job.TaskID, err)
	}
	now := im.now()
	return &models.ImportTask{
		ID:          job.TaskID,
		UserID:      job.UserID,
		Listing:     job.Scraped,
		FetchPhotos: job.PhotoDownload,
		State:       models.TaskConfirmed,
		CreatedAt:   now,
	}
}

func (im *Importer) saveTask(ctx context.Context, task *models.ImportTask) {
	task.UpdatedAt = im.now()
	if err := im.tasks.SaveTask(ctx, task); err != nil {
		im.logger.Warn("[import] task %s: save state %s: %v", task.ID, task.State, err)
	}
}

// storePhotos downloads up to photo.MaxPhotos photos in batches and uploads
// each one. It returns the durable URLs in source order and how many photos
// were requested.
func (im *Importer) storePhotos(ctx context.Context, propertyID string, l models.Listing) ([]string, int) {
	type upload struct {
		data        []byte
		contentType string
	}
	var (
		items     []upload
		requested int
	)

	if im.resizer != nil {
		requested = min(len(l.PhotoURLs), photo.MaxPhotos)
		for _, r := range im.resizer.ResizeAll(ctx, l.PhotoURLs, photo.TargetFor(l.SourcePortal)) {
			items = append(items, upload{data: r.Data, contentType: "image/jpeg"})
		}
	} else {
		var photos []photo.Photo
		photos, requested = im.fetcher.Fetch(ctx, l.PhotoURLs)
		for _, p := range photos {
			items = append(items, upload{data: p.Data, contentType: p.ContentType})
		}
	}

	results := utils.RunBatches(ctx, items, photo.BatchSize, func(ctx context.Context, u upload) (string, error) {
		return im.photos.UploadPhoto(ctx, propertyID, u.data, u.contentType)
	})

	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			im.logger.Warn("[import] property %s: upload photo: %v", propertyID, r.Err)
			continue
		}
		urls = append(urls, r.Value)
	}
	return urls, requested
}

func (im *Importer) notifyCreated(ctx context.Context, task *models.ImportTask) {
	text := notify.PropertyCreatedText(*task)
	n := &models.Notification{
		UserID:   task.UserID,
		Kind:     NotificationPropertyCreated,
		Message:  text,
		Portal:   task.Listing.SourcePortal,
		SourceID: task.Listing.SourceID,
	}
	n.Delivered = im.sink.Deliver(ctx, task.UserID, text)
	if err := im.store.CreateNotification(ctx, n); err != nil {
		im.logger.Warn("[import] task %s: write notification: %v", task.ID, err)
	}
}
