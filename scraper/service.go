// Package scraper drives portal extractors through scoped browser sessions and
// the retrying executor.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"emlak-ingest/models"
	"emlak-ingest/scraper/browser"
	"emlak-ingest/scraper/portal"
	"emlak-ingest/utils"
)

// ErrTooFewFields rejects a detail scrape that produced almost nothing.
var ErrTooFewFields = errors.New("too few fields extracted")

// Extractor is implemented by each portal package.
type Extractor interface {
	Portal() models.Portal
	ScrapeDetail(ctx context.Context, page browser.Page, url string) (models.Listing, error)
	ScrapeSearchResults(ctx context.Context, page browser.Page, url string, maxResults int) ([]models.ListingPreview, error)
}

// Service routes URLs to the matching extractor. Every attempt runs in its own
// browser session, closed before the executor decides whether to retry.
type Service struct {
	sessions   browser.Provider
	exec       *utils.Executor
	logger     *utils.Logger
	extractors map[models.Portal]Extractor
	minFields  int
}

// NewService registers the given extractors by portal.
func NewService(sessions browser.Provider, exec *utils.Executor, logger *utils.Logger, extractors ...Extractor) *Service {
	s := &Service{
		sessions:   sessions,
		exec:       exec,
		logger:     logger,
		extractors: make(map[models.Portal]Extractor, len(extractors)),
	}
	for _, e := range extractors {
		s.extractors[e.Portal()] = e
	}
	return s
}

// WithMinFields enables the minimum-viable-field gate. Zero disables it.
func (s *Service) WithMinFields(n int) *Service {
	s.minFields = n
	return s
}

func (s *Service) extractor(p models.Portal) (Extractor, error) {
	e, ok := s.extractors[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, portal.ErrUnknownPortal)
	}
	return e, nil
}

// ScrapeDetail resolves the portal of url and extracts the full listing.
func (s *Service) ScrapeDetail(ctx context.Context, url string) (models.Listing, error) {
	p := portal.Resolve(url)
	if p == models.PortalUnknown {
		return models.Listing{}, fmt.Errorf("%q: %w", url, portal.ErrUnknownPortal)
	}
	ext, err := s.extractor(p)
	if err != nil {
		return models.Listing{}, err
	}

	label := fmt.Sprintf("%s detail", p)
	listing, err := utils.Execute(utils.WithTarget(ctx, url), s.exec, label, func(ctx context.Context) (models.Listing, error) {
		sess, err := s.sessions.Acquire(ctx, p)
		if err != nil {
			return models.Listing{}, err
		}
		defer sess.Close()
		return ext.ScrapeDetail(ctx, sess, url)
	})
	if err != nil {
		return models.Listing{}, err
	}

	if s.minFields > 0 {
		if n := CountFields(listing); n < s.minFields {
			s.logger.Warn("[scraper] %s: only %d fields extracted from %s, portal structure likely changed", p, n, url)
			return models.Listing{}, fmt.Errorf("%s: %d of %d fields: %w", url, n, s.minFields, ErrTooFewFields)
		}
	}
	return listing, nil
}

// ScrapeSearch reads previews from a search page. On failure it logs, returns
// an empty list and the error, so one broken portal never aborts a scan.
func (s *Service) ScrapeSearch(ctx context.Context, p models.Portal, url string, maxResults int) ([]models.ListingPreview, error) {
	ext, err := s.extractor(p)
	if err != nil {
		s.logger.Error("[scraper] %v", err)
		return []models.ListingPreview{}, err
	}

	label := fmt.Sprintf("%s search", p)
	previews, err := utils.Execute(utils.WithTarget(ctx, url), s.exec, label, func(ctx context.Context) ([]models.ListingPreview, error) {
		sess, err := s.sessions.Acquire(ctx, p)
		if err != nil {
			return nil, err
		}
		defer sess.Close()
		return ext.ScrapeSearchResults(ctx, sess, url, maxResults)
	})
	if err != nil {
		s.logger.Error("[scraper] %s search failed for %s: %v", p, url, err)
		return []models.ListingPreview{}, err
	}
	if previews == nil {
		previews = []models.ListingPreview{}
	}
	return previews, nil
}

// CountFields returns how many listing fields carry a value.
func CountFields(l models.Listing) int {
	n := 0
	for _, present := range []bool{
		l.Title != "",
		l.Price.Amount > 0,
		l.Location.City != "" || l.Location.District != "",
		l.AreaM2 > 0,
		l.Rooms != "",
		l.Description != "",
		len(l.Features) > 0,
		len(l.PhotoURLs) > 0,
	} {
		if present {
			n++
		}
	}
	return n
}
