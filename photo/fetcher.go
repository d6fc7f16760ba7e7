// Package photo downloads listing photos in bounded batches and optionally
// resizes them for re-publication.
package photo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"emlak-ingest/utils"
)

const (
	// MaxPhotos caps how many source photos one import fetches.
	MaxPhotos = 10
	// BatchSize is the number of downloads in flight at once per import.
	BatchSize = 3

	maxPhotoBytes = 15 << 20
)

// Downloader fetches one remote resource.
type Downloader interface {
	Download(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// HTTPDownloader is a Downloader over net/http.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
}

func NewHTTPDownloader(timeout time.Duration, userAgent string) *HTTPDownloader {
	return &HTTPDownloader{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", utils.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %v", utils.ErrNetwork, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Photo is one downloaded photo buffer.
type Photo struct {
	SourceURL   string
	Data        []byte
	ContentType string
}

// Fetcher downloads the first MaxPhotos URLs in sequential batches of
// BatchSize. Failed downloads are logged and omitted.
type Fetcher struct {
	dl     Downloader
	logger *utils.Logger
}

func NewFetcher(dl Downloader, logger *utils.Logger) *Fetcher {
	return &Fetcher{dl: dl, logger: logger}
}

// Fetch returns the photos that downloaded successfully, in source order,
// and how many URLs were requested.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]Photo, int) {
	if len(urls) > MaxPhotos {
		urls = urls[:MaxPhotos]
	}

	results := utils.RunBatches(ctx, urls, BatchSize, func(ctx context.Context, url string) (Photo, error) {
		data, ct, err := f.dl.Download(ctx, url)
		if err != nil {
			return Photo{}, err
		}
		if len(data) == 0 {
			return Photo{}, fmt.Errorf("download %s: empty body", url)
		}
		return Photo{SourceURL: url, Data: data, ContentType: ct}, nil
	})

	photos := make([]Photo, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			f.logger.Warn("[photo] dropping %s: %v", urls[i], r.Err)
			continue
		}
		photos = append(photos, r.Value)
	}
	return photos, len(urls)
}
