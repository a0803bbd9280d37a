package scraper

import (
	"log/slog"
)

// Registry holds the site scrapers in registration order. Dispatch is
// first-match: the order scrapers are registered in is the order they are
// consulted, kept as an explicit slice rather than implied by source
// declaration order.
type Registry struct {
	scrapers []SiteScraper
	logger   *slog.Logger
}

// NewRegistry creates an empty scraper registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With("component", "scraper_registry"),
	}
}

// Register appends a scraper to the dispatch order.
func (r *Registry) Register(s SiteScraper) {
	r.scrapers = append(r.scrapers, s)
	r.logger.Debug("scraper registered",
		"name", s.Name(),
		"mode", s.Mode().String(),
		"position", len(r.scrapers),
	)
}

// Resolve returns the first registered scraper whose predicate matches
// the URL, or nil when no site-specific scraper owns it. A nil result is
// not an error: the caller falls back to the generic extractor.
func (r *Registry) Resolve(url string) SiteScraper {
	for _, s := range r.scrapers {
		if s.Match(url) {
			return s
		}
	}
	return nil
}

// List returns the registered scraper names in dispatch order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.scrapers))
	for _, s := range r.scrapers {
		names = append(names, s.Name())
	}
	return names
}

// DefaultRegistry builds the registry with all built-in site scrapers in
// their canonical dispatch order.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewNeptunScraper())
	r.Register(NewAnhochScraper())
	return r
}
