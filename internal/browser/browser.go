// Package browser provides a headless Chromium transport for the page
// fetcher. Each session is a separate browser context with its own cookies.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/maltedev/amazonlight/internal/config"
	"github.com/maltedev/amazonlight/internal/fetcher"
	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      config.DefaultUserAgent,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "UTC",
		Locale:         "en-US",
	}
}

// OptionsFromConfig maps the fetcher configuration onto browser options.
func OptionsFromConfig(cfg config.FetcherConfig) *Options {
	opts := DefaultOptions()
	opts.Headless = cfg.Headless
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	if cfg.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.AcceptLanguage
	}
	return opts
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// NewSession opens a fresh browser context. Cookies set during the warm-up
// request stay in that context and are dropped when the session closes.
func (b *Browser) NewSession(ctx context.Context) (fetcher.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &b.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &b.opts.Locale,
		TimezoneId:        &b.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{"Accept-Language": b.opts.AcceptLanguage},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return &Session{context: bctx, page: page, timeout: b.opts.Timeout, logger: b.logger}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// Session is one browser context with a single reusable page.
type Session struct {
	context playwright.BrowserContext
	page    playwright.Page
	timeout time.Duration
	logger  *slog.Logger
}

// Get navigates to url and returns the rendered document. The status code is
// that of the main navigation response.
func (s *Session) Get(ctx context.Context, url string, header http.Header) (*fetcher.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if headers := extraHeaders(header); len(headers) > 0 {
		if err := s.page.SetExtraHTTPHeaders(headers); err != nil {
			return nil, fmt.Errorf("failed to set headers: %w", err)
		}
	}

	timeout, err := navigationTimeout(ctx, s.timeout)
	if err != nil {
		return nil, err
	}

	// Playwright cannot abort a running navigation, so cancellation closes
	// the page. The session is single-use and is discarded afterwards.
	stop := context.AfterFunc(ctx, func() {
		if err := s.page.Close(); err != nil {
			s.logger.Debug("failed to close page on cancel", "error", err)
		}
	})
	defer stop()

	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	status := 0
	if resp != nil {
		status = resp.Status()
	}

	content, err := s.page.Content()
	if err != nil {
		return &fetcher.Response{StatusCode: status}, fmt.Errorf("failed to get page content: %w", err)
	}

	s.logger.Debug("page loaded", "url", url, "status", status, "bytes", len(content))
	return &fetcher.Response{StatusCode: status, Body: content}, nil
}

func (s *Session) Close() error {
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

// extraHeaders converts request headers for playwright. The user agent is a
// context option and the browser negotiates encoding itself.
func extraHeaders(header http.Header) map[string]string {
	headers := make(map[string]string, len(header))
	for key, values := range header {
		switch http.CanonicalHeaderKey(key) {
		case "User-Agent", "Accept-Encoding":
			continue
		}
		if len(values) > 0 {
			headers[key] = strings.Join(values, ", ")
		}
	}
	return headers
}

// navigationTimeout caps the configured timeout at the time left before the
// ctx deadline.
func navigationTimeout(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return timeout, nil
	}

	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	if timeout <= 0 || left < timeout {
		return left, nil
	}
	return timeout, nil
}
