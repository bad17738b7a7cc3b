// Package browser owns the fetch-and-render boilerplate: the headless
// Chromium lifecycle, stealth-hardened page sessions, and the plain HTTP
// fetcher with a Chrome TLS fingerprint.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/stealth"
	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/models"
)

// Browser manages the global browser lifecycle. Sessions (tabs) are handed
// out one per connector; the pipeline never runs two sessions concurrently.
type Browser struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

// New launches a headless browser with anti-automation flags and connects
// to it.
func New(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewPipelineError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewPipelineError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Browser{browser: b, cfg: cfg}, nil
}

// NewSession opens a fresh stealth-injected page. The caller owns it for
// the duration of one connector run and must Close it.
func (b *Browser) NewSession() (*Session, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, models.NewPipelineError(
			models.ErrCodeBrowserCrash,
			"failed to open stealth page",
			err,
		)
	}
	return &Session{page: page}, nil
}

// Close kills the browser process. Call this on shutdown to prevent zombie
// Chrome processes.
func (b *Browser) Close() {
	slog.Info("browser shutting down")
	b.browser.MustClose()
}

// Session is one connector's private tab.
type Session struct {
	page *rod.Page
}

// Page exposes the underlying rod page for source-specific DOM work.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Navigate loads the URL and waits for the DOM to settle, bounded by
// timeout. Stealth JS is already installed on the session's page, so it
// takes effect for every navigation.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", url, "error", err,
		)
	}
	return nil
}

// HTML returns the rendered page markup.
func (s *Session) HTML() (string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return html, nil
}

// Close releases the tab.
func (s *Session) Close() {
	_ = s.page.Close()
}

// categorizeError wraps raw errors into typed PipelineErrors so callers can
// tell timeouts from hard navigation failures.
func categorizeError(err error, msg string) *models.PipelineError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPipelineError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewPipelineError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewPipelineError(models.ErrCodeNavigation, msg, err)
	}
}

// Pause sleeps for a random duration in [min, max], or until ctx is done.
// The jitter between requests is a politeness requirement: fixed-interval
// traffic is what anti-bot defenses key on.
func Pause(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
