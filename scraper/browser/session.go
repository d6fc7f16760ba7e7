package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"emlak-ingest/models"
	"emlak-ingest/utils"
)

// Config controls how sessions are launched.
type Config struct {
	ChromeBin         string
	Headless          bool
	UserAgent         string
	Locale            string
	ViewportWidth     int
	ViewportHeight    int
	ViewportJitter    int
	NavigationTimeout time.Duration
	WaitTimeout       time.Duration
	AcquireDelayMin   time.Duration
	AcquireDelayMax   time.Duration
	// AcquireInterval is the minimum gap between sessions for the same portal.
	AcquireInterval time.Duration
}

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultConfig returns desktop Chrome settings for the Turkish market.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		UserAgent:         desktopUserAgent,
		Locale:            "tr-TR",
		ViewportWidth:     1366,
		ViewportHeight:    768,
		ViewportJitter:    24,
		NavigationTimeout: 30 * time.Second,
		WaitTimeout:       10 * time.Second,
		AcquireDelayMin:   2 * time.Second,
		AcquireDelayMax:   4 * time.Second,
		AcquireInterval:   5 * time.Second,
	}
}

// Provider hands out scoped sessions. Manager is the chromedp implementation.
type Provider interface {
	Acquire(ctx context.Context, p models.Portal) (Session, error)
}

// Manager owns the process-wide exec allocator and the per-portal limiters.
type Manager struct {
	cfg    Config
	logger *utils.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc

	mu       sync.Mutex
	limiters map[models.Portal]*rate.Limiter
	delay    func(ctx context.Context, min, max time.Duration) error
}

// NewManager starts the exec allocator. Chrome itself is launched lazily,
// once per session.
func NewManager(cfg Config, logger *utils.Logger) *Manager {
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", cfg.Locale),
		chromedp.Flag("log-level", "3"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Manager{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		limiters:    make(map[models.Portal]*rate.Limiter),
		delay:       utils.RandomDelay,
	}
}

// Close shuts down the allocator and every browser it launched.
func (m *Manager) Close() {
	m.cancelAlloc()
}

func (m *Manager) limiter(p models.Portal) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.limiters[p]
	if !ok {
		l = rate.NewLimiter(rate.Every(m.cfg.AcquireInterval), 1)
		m.limiters[p] = l
	}
	return l
}

// Acquire launches an isolated browser session for portal p. The caller must
// Close it on every exit path.
func (m *Manager) Acquire(ctx context.Context, p models.Portal) (Session, error) {
	if m.cfg.AcquireInterval > 0 {
		if err := m.limiter(p).Wait(ctx); err != nil {
			return nil, fmt.Errorf("acquire %s: %w", p, err)
		}
	}

	tabCtx, cancelTab := chromedp.NewContext(m.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	s := &chromeSession{
		ctx:    tabCtx,
		cancel: cancelTab,
		cfg:    m.cfg,
		logger: m.logger,
		portal: p,
	}

	// The first Run launches Chrome; a deadline on it would kill the browser
	// when it fires.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser for %s: %w", p, err)
	}

	width := jitter(m.cfg.ViewportWidth, m.cfg.ViewportJitter)
	height := jitter(m.cfg.ViewportHeight, m.cfg.ViewportJitter)

	err := s.run(ctx, m.cfg.NavigationTimeout,
		chromedp.EmulateViewport(int64(width), int64(height)),
		emulation.SetLocaleOverride().WithLocale(m.cfg.Locale),
		emulation.SetUserAgentOverride(m.cfg.UserAgent).WithAcceptLanguage(m.cfg.Locale+",tr;q=0.9,en;q=0.5"),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("emulate %s session: %w", p, err)
	}
	m.logger.Debug("[browser] %s session started (%dx%d)", p, width, height)

	if err := m.delay(ctx, m.cfg.AcquireDelayMin, m.cfg.AcquireDelayMax); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func jitter(base, spread int) int {
	if spread <= 0 {
		return base
	}
	return base - spread + int(utils.RandomDuration(0, time.Duration(2*spread)))
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	logger *utils.Logger
	portal models.Portal

	once sync.Once
}

// run executes actions in the tab, bounded by timeout and by the caller's ctx.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "net::ERR_") {
		return fmt.Errorf("navigate %s: %w: %v", url, utils.ErrNetwork, err)
	}
	return fmt.Errorf("navigate %s: %w", url, err)
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string) error {
	err := s.run(ctx, s.cfg.WaitTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("[browser] %s: %q not visible after %v, portal structure likely changed",
			s.portal, selector, s.cfg.WaitTimeout)
		return fmt.Errorf("wait %q: %w", selector, ErrStructureChanged)
	}
	return fmt.Errorf("wait %q: %w", selector, err)
}

func (s *chromeSession) Reader() PageReader {
	return &domReader{s: s, scope: "document"}
}

// Close terminates the tab and its browser. Safe to call more than once.
func (s *chromeSession) Close() {
	s.once.Do(s.cancel)
}

// findChromeBinary returns CHROME_BIN or the first Chrome/Chromium found on
// the system. Empty means chromedp's own lookup.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
