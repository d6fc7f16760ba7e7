package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

func TestJitterStaysInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		w := jitter(1366, 24)
		if w < 1342 || w > 1390 {
			t.Fatalf("jitter(1366, 24) = %d; out of range", w)
		}
	}
	assert.Equal(t, 768, jitter(768, 0))
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	calls := 0
	s := &chromeSession{cancel: func() { calls++ }}
	s.Close()
	s.Close()
	assert.Equal(t, 1, calls)
}

func TestFindChromeBinaryPrefersEnv(t *testing.T) {
	t.Setenv("CHROME_BIN", "/opt/chrome/chrome")
	assert.Equal(t, "/opt/chrome/chrome", findChromeBinary())
}

func TestFakePageReader(t *testing.T) {
	ctx := context.Background()
	card := &FakePage{Texts: map[string]string{"h3": "Satılık Daire"}}
	page := &FakePage{
		Texts:    map[string]string{"h1": "Başlık"},
		Attrs:    map[string]map[string]string{"a.link": {"href": "https://x"}},
		Children: map[string][]*FakePage{".card": {card}},
	}

	got, err := page.Text(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "Başlık", got)

	_, err = page.Text(ctx, "h2")
	assert.ErrorIs(t, err, ErrNotFound)

	href, err := page.Attr(ctx, "a.link", "href")
	require.NoError(t, err)
	assert.Equal(t, "https://x", href)

	cards, err := page.All(ctx, ".card")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	title, _ := cards[0].Text(ctx, "h3")
	assert.Equal(t, "Satılık Daire", title)

	none, err := page.All(ctx, ".missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFakeBrowserSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	b := NewFakeBrowser()
	b.Pages["https://a"] = &FakePage{Texts: map[string]string{"h1": "x"}}
	b.NavigateErrs["https://a"] = []error{utils.ErrNetwork}

	s, err := b.Acquire(ctx, models.PortalSahibinden)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Open())

	err = s.Navigate(ctx, "https://a")
	assert.True(t, errors.Is(err, utils.ErrNetwork))
	require.NoError(t, s.Navigate(ctx, "https://a"))

	assert.NoError(t, s.WaitVisible(ctx, "h1"))
	assert.ErrorIs(t, s.WaitVisible(ctx, ".gone"), ErrStructureChanged)
	assert.False(t, utils.IsNetworkError(s.WaitVisible(ctx, ".gone")))

	s.Close()
	s.Close()
	assert.Equal(t, 0, b.Open())
}
