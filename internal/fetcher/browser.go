package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/types"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod.
// One instance serves one scrape: the scrape service creates it when a
// scraper asks for ModeBrowser and releases it with defer, so the browser
// process is cleaned up on every exit path.
type BrowserFetcher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      *config.FetcherConfig
	logger   *slog.Logger
	dumper   *Dumper
}

// NewBrowserFetcher launches a headless Chromium instance and connects
// to it. Callers must Close the fetcher.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(cfg.Fetcher.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &BrowserFetcher{
		browser:  browser,
		launcher: l,
		cfg:      &cfg.Fetcher,
		logger:   logger.With("component", "browser_fetcher"),
		dumper:   NewDumper(cfg.Fetcher.DumpDir, logger),
	}, nil
}

// Fetch navigates to a URL, waits for dynamic content to settle, and
// returns the rendered markup.
func (bf *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	var page *rod.Page
	var err error
	if bf.cfg.Stealth {
		page, err = stealth.Page(bf.browser)
	} else {
		page, err = bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, &types.FetchError{URL: url, Err: fmt.Errorf("open page: %w", err)}
	}
	defer page.Close()

	page = page.Context(ctx)

	if bf.cfg.UserAgent != "" {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: bf.cfg.UserAgent})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	timeout := bf.cfg.RequestTimeout
	if err := page.Timeout(timeout).Navigate(url); err != nil {
		return nil, &types.FetchError{URL: url, Err: err}
	}

	// Give scripts a floor to start rendering, then wait for the DOM to
	// stop mutating, bounded by the request timeout. Pages that never
	// settle still get captured after the timeout.
	if bf.cfg.SettleDelay > 0 {
		time.Sleep(bf.cfg.SettleDelay)
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, capturing anyway", "url", url, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: url, Err: err}
	}
	if html == "" {
		return nil, &types.FetchError{URL: url, Err: types.ErrEmptyResponse}
	}

	bf.dumper.Dump("browser", url, []byte(html))

	bf.logger.Debug("browser fetch complete",
		"url", url,
		"size", len(html),
		"duration", time.Since(start),
	)

	return []byte(html), nil
}

// Close shuts down the browser process and its launcher.
func (bf *BrowserFetcher) Close() error {
	var err error
	if bf.browser != nil {
		err = bf.browser.Close()
	}
	if bf.launcher != nil {
		bf.launcher.Cleanup()
	}
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string { return "browser" }
