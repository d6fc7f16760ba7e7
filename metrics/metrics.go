// Package metrics holds the Prometheus collectors for scraping, monitoring
// and imports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"emlak-ingest/models"
)

const namespace = "emlak_ingest"

// Metrics is a private registry plus the application collectors. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	scrapeAttempts   *prometheus.CounterVec
	scrapeRetries    *prometheus.CounterVec
	scrapeFailures   *prometheus.CounterVec
	listingsFound    *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	importsCompleted *prometheus.CounterVec
	photos           *prometheus.CounterVec
	monitorDuration  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		scrapeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_attempts_total",
			Help:      "Scrape attempts by executor label.",
		}, []string{"label"}),
		scrapeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_retries_total",
			Help:      "Scrape retries after a network-class failure.",
		}, []string{"label"}),
		scrapeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_failures_total",
			Help:      "Scrapes that surfaced an error, by class.",
		}, []string{"label", "class"}),
		listingsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_discovered_total",
			Help:      "New listings found by the monitor, by portal.",
		}, []string{"portal"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"outcome"}),
		importsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_completed_total",
			Help:      "Import tasks by terminal state.",
		}, []string{"state"}),
		photos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photos_total",
			Help:      "Photo fetches by outcome.",
		}, []string{"outcome"}),
		monitorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "monitor_user_duration_seconds",
			Help:      "Time spent monitoring one user.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200},
		}),
	}

	m.Registry.MustRegister(
		m.scrapeAttempts,
		m.scrapeRetries,
		m.scrapeFailures,
		m.listingsFound,
		m.notifications,
		m.importsCompleted,
		m.photos,
		m.monitorDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAttempt(label string) {
	if m == nil {
		return
	}
	m.scrapeAttempts.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveRetry(label string) {
	if m == nil {
		return
	}
	m.scrapeRetries.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveFailure(label string, transient bool) {
	if m == nil {
		return
	}
	class := "permanent"
	if transient {
		class = "transient"
	}
	m.scrapeFailures.WithLabelValues(label, class).Inc()
}

func (m *Metrics) ListingDiscovered(p models.Portal) {
	if m == nil {
		return
	}
	m.listingsFound.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) NotificationDelivered(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "delivered"
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ImportCompleted(state models.TaskState) {
	if m == nil {
		return
	}
	m.importsCompleted.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) PhotosFetched(stored, dropped int) {
	if m == nil {
		return
	}
	m.photos.WithLabelValues("stored").Add(float64(stored))
	m.photos.WithLabelValues("dropped").Add(float64(dropped))
}

func (m *Metrics) MonitorUserSeconds(s float64) {
	if m == nil {
		return
	}
	m.monitorDuration.Observe(s)
}
