package photo

import (
	"bytes"
	"context"
	"fmt"

	"github.com/disintegration/imaging"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

const (
	startQuality = 90
	qualityStep  = 5
	minQuality   = 60
)

// Target is the size a portal accepts for uploaded photos.
type Target struct {
	MaxWidth  int
	MaxHeight int
	MaxBytes  int
}

// Targets holds the per-portal photo limits.
var Targets = map[models.Portal]Target{
	models.PortalSahibinden: {MaxWidth: 1920, MaxHeight: 1440, MaxBytes: 1 << 20},
	models.PortalHepsiemlak: {MaxWidth: 1600, MaxHeight: 1200, MaxBytes: 800 << 10},
	models.PortalEmlakjet:   {MaxWidth: 1280, MaxHeight: 960, MaxBytes: 700 << 10},
}

var defaultTarget = Target{MaxWidth: 1600, MaxHeight: 1200, MaxBytes: 1 << 20}

// TargetFor returns the limits for p, or a generic default.
func TargetFor(p models.Portal) Target {
	if t, ok := Targets[p]; ok {
		return t
	}
	return defaultTarget
}

// Resized is a JPEG buffer with its pixel dimensions.
type Resized struct {
	SourceURL string
	Data      []byte
	Width     int
	Height    int
	Quality   int
}

// Resizer runs download, fit and JPEG re-encode for each photo, with the
// same batch concurrency as Fetcher.
type Resizer struct {
	dl     Downloader
	logger *utils.Logger
}

func NewResizer(dl Downloader, logger *utils.Logger) *Resizer {
	return &Resizer{dl: dl, logger: logger}
}

// ResizeAll processes up to MaxPhotos URLs and returns the successes in order.
func (r *Resizer) ResizeAll(ctx context.Context, urls []string, target Target) []Resized {
	if len(urls) > MaxPhotos {
		urls = urls[:MaxPhotos]
	}

	results := utils.RunBatches(ctx, urls, BatchSize, func(ctx context.Context, url string) (Resized, error) {
		data, _, err := r.dl.Download(ctx, url)
		if err != nil {
			return Resized{}, err
		}
		out, err := Resize(data, target)
		if err != nil {
			return Resized{}, err
		}
		out.SourceURL = url
		return out, nil
	})

	out := make([]Resized, 0, len(results))
	for i, res := range results {
		if res.Err != nil {
			r.logger.Warn("[photo] resize failed for %s: %v", urls[i], res.Err)
			continue
		}
		out = append(out, res.Value)
	}
	return out
}

// Resize fits data inside the target box and re-encodes it as JPEG, lowering
// quality by 5 from 90 while the result is larger than MaxBytes. Quality never
// drops below 60; the last encoding is returned even if still oversize.
func Resize(data []byte, target Target) (Resized, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Resized{}, fmt.Errorf("decode: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > target.MaxWidth || b.Dy() > target.MaxHeight {
		img = imaging.Fit(img, target.MaxWidth, target.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	quality := startQuality
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return Resized{}, fmt.Errorf("encode q=%d: %w", quality, err)
		}
		if target.MaxBytes <= 0 || buf.Len() <= target.MaxBytes || quality-qualityStep < minQuality {
			break
		}
		quality -= qualityStep
	}

	fb := img.Bounds()
	return Resized{
		Data:    buf.Bytes(),
		Width:   fb.Dx(),
		Height:  fb.Dy(),
		Quality: quality,
	}, nil
}
