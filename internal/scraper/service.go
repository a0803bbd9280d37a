package scraper

import (
	"context"
	"log/slog"

	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/fetcher"
	"github.com/voyagerhq/voyager/internal/observability"
	"github.com/voyagerhq/voyager/internal/pipeline"
	"github.com/voyagerhq/voyager/internal/types"
)

// Service runs one scrape end to end: dispatch a scraper for the URL,
// fetch with the scraper's mode, parse, and normalize the records.
type Service struct {
	registry   *Registry
	generic    SiteScraper
	static     fetcher.Fetcher
	newBrowser func() (fetcher.Fetcher, error)
	cfg        *config.Config
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithRegistry replaces the default scraper registry.
func WithRegistry(r *Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithStaticFetcher replaces the default static fetcher.
func WithStaticFetcher(f fetcher.Fetcher) Option {
	return func(s *Service) { s.static = f }
}

// WithBrowserFactory replaces how rendered fetchers are created. The
// service still owns the release of whatever the factory returns.
func WithBrowserFactory(fn func() (fetcher.Fetcher, error)) Option {
	return func(s *Service) { s.newBrowser = fn }
}

// NewService creates a scrape service with the built-in registry, a
// shared static fetcher, and per-scrape browser fetchers.
func NewService(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		registry: DefaultRegistry(logger),
		generic:  NewGenericExtractor(cfg.Scraper.MaxContainers),
		static:   fetcher.NewStaticFetcher(cfg, logger),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger.With("component", "scraper"),
	}
	s.newBrowser = func() (fetcher.Fetcher, error) {
		return fetcher.NewBrowserFetcher(cfg, logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScrapeURL scrapes one target URL and returns its normalized records.
// A fetch or page-level parse failure returns an error the caller treats
// as zero products for this target.
func (s *Service) ScrapeURL(ctx context.Context, rawURL string) ([]types.ProductRecord, error) {
	if err := config.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	site := s.registry.Resolve(rawURL)
	if site == nil {
		s.logger.Info("no site scraper matched, using generic extractor", "url", rawURL)
		site = s.generic
	} else {
		s.logger.Info("site scraper selected", "url", rawURL, "scraper", site.Name())
	}

	s.metrics.ScrapesTotal.Add(1)

	records, err := s.fetchAndParse(ctx, site, rawURL)
	if err != nil {
		s.metrics.ScrapesFailed.Add(1)
		return nil, err
	}

	records = s.normalize(records)
	s.metrics.RecordsExtracted.Add(int64(len(records)))

	s.logger.Info("scrape complete",
		"url", rawURL,
		"scraper", site.Name(),
		"records", len(records),
	)
	return records, nil
}

// Scrapers returns the registered site scraper names in dispatch order.
func (s *Service) Scrapers() []string {
	return s.registry.List()
}

// Close releases the shared static fetcher.
func (s *Service) Close() error {
	return s.static.Close()
}

// fetchAndParse fetches the page with the scraper's mode and parses it.
// Browser fetchers live exactly as long as one call: acquired here,
// released by defer on every exit path.
func (s *Service) fetchAndParse(ctx context.Context, site SiteScraper, rawURL string) ([]types.ProductRecord, error) {
	f := s.static
	if site.Mode() == fetcher.ModeBrowser {
		browser, err := s.newBrowser()
		if err != nil {
			return nil, &types.FetchError{URL: rawURL, Err: err}
		}
		defer func() {
			if cerr := browser.Close(); cerr != nil {
				s.logger.Warn("browser close failed", "url", rawURL, "error", cerr)
			}
		}()
		f = browser
	}

	body, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return site.Parse(NewPage(rawURL, body))
}

// normalize runs the per-batch record pipeline: trim, drop incomplete
// records, dedup by URL, fill in the default currency.
func (s *Service) normalize(records []types.ProductRecord) []types.ProductRecord {
	pipe := pipeline.New(s.logger)
	pipe.Use(&pipeline.TrimMiddleware{})
	pipe.Use(&pipeline.RequiredFieldsMiddleware{})
	pipe.Use(pipeline.NewDedupMiddleware())
	pipe.Use(&pipeline.DefaultCurrencyMiddleware{Code: s.cfg.Scraper.DefaultCurrency})
	return pipe.ProcessAll(records)
}
