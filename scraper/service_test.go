package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emlak-ingest/models"
	"emlak-ingest/scraper/browser"
	"emlak-ingest/scraper/emlakjet"
	"emlak-ingest/scraper/hepsiemlak"
	"emlak-ingest/scraper/portal"
	"emlak-ingest/scraper/sahibinden"
	"emlak-ingest/utils"
)

const listingURL = "https://www.sahibinden.com/ilan/emlak-konut-satilik-123456789"

func newService(b *browser.FakeBrowser) *Service {
	logger := utils.NewNopLogger()
	exec := utils.NewExecutor(utils.DefaultRetryPolicy(), logger,
		utils.WithSleep(func(context.Context, time.Duration) error { return nil }))
	return NewService(b, exec, logger,
		sahibinden.New(logger), hepsiemlak.New(logger), emlakjet.New(logger))
}

func listingPage() *browser.FakePage {
	return &browser.FakePage{Texts: map[string]string{
		".classifiedDetailTitle": "Satılık 3+1 Daire",
		".classifiedInfo > h3":   "2.500.000 TL",
	}}
}

func TestScrapeDetailUnknownPortal(t *testing.T) {
	b := browser.NewFakeBrowser()

	_, err := newService(b).ScrapeDetail(context.Background(), "https://www.zingat.com/ilan/1")
	assert.ErrorIs(t, err, portal.ErrUnknownPortal)
	assert.Zero(t, b.Acquired)
}

func TestScrapeDetailRetriesNetworkFailures(t *testing.T) {
	b := browser.NewFakeBrowser()
	b.Pages[listingURL] = listingPage()
	b.NavigateErrs[listingURL] = []error{
		fmt.Errorf("page load error net::ERR_CONNECTION_RESET"),
	}

	got, err := newService(b).ScrapeDetail(context.Background(), listingURL)
	require.NoError(t, err)
	assert.Equal(t, "123456789", got.SourceID)
	assert.Equal(t, 2, b.Acquired)
	assert.Zero(t, b.Open())
}

func TestScrapeDetailTimeoutAttemptedThreeTimes(t *testing.T) {
	b := browser.NewFakeBrowser()
	timeout := fmt.Errorf("navigate: %w", utils.ErrNetwork)
	b.NavigateErrs[listingURL] = []error{timeout, timeout, timeout, timeout}

	_, err := newService(b).ScrapeDetail(context.Background(), listingURL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrNetwork))
	assert.Equal(t, 3, b.Acquired)
	assert.Zero(t, b.Open())
}

func TestScrapeDetailStructureChangeNotRetried(t *testing.T) {
	b := browser.NewFakeBrowser()
	b.Pages[listingURL] = &browser.FakePage{Texts: map[string]string{"h1": "x"}}

	_, err := newService(b).ScrapeDetail(context.Background(), listingURL)
	assert.ErrorIs(t, err, browser.ErrStructureChanged)
	assert.Equal(t, 1, b.Acquired)
	assert.Zero(t, b.Open())
}

func TestScrapeDetailMinFieldGate(t *testing.T) {
	b := browser.NewFakeBrowser()
	b.Pages[listingURL] = &browser.FakePage{Texts: map[string]string{".classifiedDetailTitle": "İlan"}}

	_, err := newService(b).WithMinFields(3).ScrapeDetail(context.Background(), listingURL)
	assert.ErrorIs(t, err, ErrTooFewFields)

	got, err := newService(b).ScrapeDetail(context.Background(), listingURL)
	require.NoError(t, err)
	assert.Equal(t, "İlan", got.Title)
}

func TestScrapeSearchFailureYieldsEmptyList(t *testing.T) {
	b := browser.NewFakeBrowser()
	url := "https://www.hepsiemlak.com/kadikoy-satilik"
	b.AcquireErr = errors.New("chrome failed to start")

	got, err := newService(b).ScrapeSearch(context.Background(), models.PortalHepsiemlak, url, 10)
	assert.Error(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScrapeSearchUnknownPortal(t *testing.T) {
	got, err := newService(browser.NewFakeBrowser()).ScrapeSearch(context.Background(), models.PortalUnknown, "https://x", 10)
	assert.ErrorIs(t, err, portal.ErrUnknownPortal)
	assert.Empty(t, got)
}

func TestCountFields(t *testing.T) {
	assert.Zero(t, CountFields(models.Listing{}))
	assert.Equal(t, 3, CountFields(models.Listing{
		Title:    "x",
		Price:    models.Price{Amount: 1},
		Location: models.Location{District: "Kadıköy"},
	}))
}

type labelObserver struct {
	labels map[string]int
}

func (o *labelObserver) ObserveAttempt(label string) { o.labels[label]++ }
func (o *labelObserver) ObserveRetry(string)         {}
func (o *labelObserver) ObserveFailure(string, bool) {}

func TestScrapeLabelsOmitURL(t *testing.T) {
	b := browser.NewFakeBrowser()
	logger := utils.NewNopLogger()
	obs := &labelObserver{labels: map[string]int{}}
	exec := utils.NewExecutor(utils.DefaultRetryPolicy(), logger,
		utils.WithSleep(func(context.Context, time.Duration) error { return nil }),
		utils.WithObserver(obs))
	svc := NewService(b, exec, logger, sahibinden.New(logger))

	for i := 0; i < 5; i++ {
		url := fmt.Sprintf("https://www.sahibinden.com/ilan/emlak-konut-satilik-10%d", i)
		b.Pages[url] = listingPage()
		_, err := svc.ScrapeDetail(context.Background(), url)
		require.NoError(t, err)
	}

	assert.Equal(t, map[string]int{"sahibinden detail": 5}, obs.labels)
}
