package services

import (
	"context"
	"fmt"
	"time"

	"emlak-ingest/metrics"
	"emlak-ingest/models"
	"emlak-ingest/notify"
	"emlak-ingest/storage"
	"emlak-ingest/utils"
)

// NotificationNewListing is the notification kind written by the monitor.
const NotificationNewListing = "listing.discovered"

// SearchScraper reads listing previews from a portal search page.
type SearchScraper interface {
	ScrapeSearch(ctx context.Context, p models.Portal, url string, maxResults int) ([]models.ListingPreview, error)
}

// MonitorConfig controls pacing of a monitoring pass.
type MonitorConfig struct {
	MaxResults       int
	UserDelayMin     time.Duration
	UserDelayMax     time.Duration
	CriteriaDelayMin time.Duration
	CriteriaDelayMax time.Duration
	PortalDelayMin   time.Duration
	PortalDelayMax   time.Duration
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		MaxResults:       20,
		UserDelayMin:     10 * time.Second,
		UserDelayMax:     20 * time.Second,
		CriteriaDelayMin: 3 * time.Second,
		CriteriaDelayMax: 6 * time.Second,
		PortalDelayMin:   2 * time.Second,
		PortalDelayMax:   4 * time.Second,
	}
}

// RunResult is everything one monitoring pass produced.
type RunResult struct {
	Runs        []*models.MonitorRun
	Discoveries []models.Discovery
}

// Monitor scans every user's criteria for listings not yet in their
// inventory. Users, criteria and portals are processed strictly in sequence.
type Monitor struct {
	cfg         MonitorConfig
	store       storage.DocumentStore
	scraper     SearchScraper
	aggregator  *CriteriaAggregator
	sink        notify.Sink
	runLog      storage.RunLogWriter
	discoveries storage.DiscoveryWriter
	metrics     *metrics.Metrics
	logger      *utils.Logger
	delay       func(ctx context.Context, min, max time.Duration) error
	now         func() time.Time
}

func NewMonitor(cfg MonitorConfig, store storage.DocumentStore, scraper SearchScraper, sink notify.Sink, logger *utils.Logger) *Monitor {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMonitorConfig().MaxResults
	}
	return &Monitor{
		cfg:        cfg,
		store:      store,
		scraper:    scraper,
		aggregator: NewCriteriaAggregator(logger),
		sink:       sink,
		logger:     logger,
		delay:      utils.RandomDelay,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithRunLog persists one summary row per user after each pass.
func (m *Monitor) WithRunLog(w storage.RunLogWriter) *Monitor {
	m.runLog = w
	return m
}

// WithDiscoveryWriter records every new listing found.
func (m *Monitor) WithDiscoveryWriter(w storage.DiscoveryWriter) *Monitor {
	m.discoveries = w
	return m
}

func (m *Monitor) WithMetrics(mt *metrics.Metrics) *Monitor {
	m.metrics = mt
	return m
}

// Run performs one monitoring pass over all users. A failing user is logged
// and skipped; only failing to list users aborts the pass.
func (m *Monitor) Run(ctx context.Context) (*RunResult, error) {
	users, err := m.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: list users: %w", err)
	}
	m.logger.Info("[monitor] Starting pass over %d users", len(users))

	result := &RunResult{}
	for i, u := range users {
		if i > 0 {
			if err := m.delay(ctx, m.cfg.UserDelayMin, m.cfg.UserDelayMax); err != nil {
				break
			}
		}

		started := m.now()
		run, found, err := m.runUser(ctx, u)
		run.StartedAt, run.FinishedAt = started, m.now()
		m.metrics.MonitorUserSeconds(run.FinishedAt.Sub(started).Seconds())
		if err != nil {
			run.Errors++
			m.logger.Error("[monitor] user %s: %v", u.ID, err)
		}

		result.Runs = append(result.Runs, run)
		result.Discoveries = append(result.Discoveries, found...)
	}

	m.persist(ctx, result)
	m.logger.Info("[monitor] Pass complete: %d users, %d new listings", len(result.Runs), len(result.Discoveries))
	return result, ctx.Err()
}

func (m *Monitor) runUser(ctx context.Context, u models.User) (*models.MonitorRun, []models.Discovery, error) {
	run := &models.MonitorRun{UserID: u.ID}

	rules, err := m.store.ListEnabledRules(ctx, u.ID)
	if err != nil {
		return run, nil, fmt.Errorf("list rules: %w", err)
	}
	customers, err := m.store.ListCustomers(ctx, u.ID)
	if err != nil {
		return run, nil, fmt.Errorf("list customers: %w", err)
	}
	inventory, err := m.store.ListProperties(ctx, u.ID)
	if err != nil {
		return run, nil, fmt.Errorf("list properties: %w", err)
	}

	seen := SeenFromInventory(inventory)
	criteria := m.aggregator.Aggregate(rules, customers)
	run.CriteriaCount = len(criteria)

	var found []models.Discovery
	for ci, c := range criteria {
		if ci > 0 {
			if err := m.delay(ctx, m.cfg.CriteriaDelayMin, m.cfg.CriteriaDelayMax); err != nil {
				return run, found, err
			}
		}

		for pi, s := range m.aggregator.SearchURLs(c) {
			if pi > 0 {
				if err := m.delay(ctx, m.cfg.PortalDelayMin, m.cfg.PortalDelayMax); err != nil {
					return run, found, err
				}
			}

			previews, err := m.scraper.ScrapeSearch(ctx, s.Portal, s.URL, m.cfg.MaxResults)
			run.SearchesRun++
			if err != nil {
				run.SearchesFailed++
				continue
			}
			run.PreviewsFound += len(previews)

			for _, p := range NewPreviews(seen, s.Portal, previews) {
				d := models.Discovery{UserID: u.ID, Portal: s.Portal, Preview: p, Criteria: c, DiscoveredAt: m.now()}
				if m.notifyDiscovery(ctx, u, d) {
					run.NotificationsOK++
				}
				m.metrics.ListingDiscovered(s.Portal)
				found = append(found, d)
			}
		}
	}

	run.NewListings = len(found)
	m.logger.Info("[monitor] user %s: %d criteria, %d searches (%d failed), %d new",
		u.ID, run.CriteriaCount, run.SearchesRun, run.SearchesFailed, run.NewListings)
	return run, found, nil
}

// SeenFromInventory seeds the novelty set with the portal-scoped source ID
// and the source URL of every property already in the user's inventory.
func SeenFromInventory(inventory []models.Property) *utils.IDSet {
	keys := make([]string, 0, 2*len(inventory))
	for _, p := range inventory {
		if p.SourceID != "" {
			keys = append(keys, models.SourceKey(p.SourcePortal, p.SourceID))
		}
		keys = append(keys, p.SourceURL)
	}
	return utils.NewIDSet(keys...)
}

// NewPreviews returns the previews of one portal whose novelty key is not in
// seen and adds them to it, so a second scan of the same page yields nothing.
func NewPreviews(seen *utils.IDSet, portal models.Portal, previews []models.ListingPreview) []models.ListingPreview {
	var out []models.ListingPreview
	for _, p := range previews {
		key := p.NoveltyKey(portal)
		if key == "" || seen.Contains(p.SourceURL) {
			continue
		}
		if seen.Add(key) {
			out = append(out, p)
		}
	}
	return out
}

func (m *Monitor) notifyDiscovery(ctx context.Context, u models.User, d models.Discovery) bool {
	text := notify.NewListingText(d.Portal, d.Preview, d.Criteria)
	preview := d.Preview
	n := &models.Notification{
		UserID:     u.ID,
		Kind:       NotificationNewListing,
		Message:    text,
		Portal:     d.Portal,
		SourceID:   preview.SourceID,
		Preview:    &preview,
		CustomerID: d.Criteria.CustomerID,
		RuleID:     d.Criteria.RuleID,
	}

	n.Delivered = m.sink.Deliver(ctx, destination(u), text)
	m.metrics.NotificationDelivered(n.Delivered)
	if err := m.store.CreateNotification(ctx, n); err != nil {
		m.logger.Warn("[monitor] user %s: write notification: %v", u.ID, err)
	}
	return n.Delivered
}

func destination(u models.User) string {
	switch {
	case u.Destination != "":
		return u.Destination
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}

func (m *Monitor) persist(ctx context.Context, r *RunResult) {
	if m.runLog != nil && len(r.Runs) > 0 {
		if err := m.runLog.WriteRuns(context.WithoutCancel(ctx), r.Runs); err != nil {
			m.logger.Error("[monitor] write run log: %v", err)
		}
	}
	if m.discoveries != nil && len(r.Discoveries) > 0 {
		if err := m.discoveries.WriteDiscoveries(r.Discoveries); err != nil {
			m.logger.Error("[monitor] write discoveries: %v", err)
		}
	}
}
