package autoscrape

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/types"
)

// targetsFile is the per-provider scrape target configuration, expected
// at <providersDir>/<provider>/targets.yaml.
const targetsFile = "targets.yaml"

// Target is one URL to scrape. Its category overrides the provider's.
// Targets are opt-in: only entries with enabled set to true are
// attempted.
type Target struct {
	URL         string `yaml:"url"`
	Category    string `yaml:"category,omitempty"`
	Enabled     bool   `yaml:"enabled"`
	Description string `yaml:"description,omitempty"`
}

// ProviderConfig is the parsed targets.yaml of one provider directory.
type ProviderConfig struct {
	// Category applies to every target that does not set its own.
	Category string   `yaml:"category,omitempty"`
	Targets  []Target `yaml:"targets"`
}

// Provider pairs a provider name (its directory name) with its parsed
// configuration.
type Provider struct {
	Name   string
	Config ProviderConfig
}

// Target statuses in the run report.
const (
	StatusSuccess    = "success"
	StatusNoProducts = "no_products"
	StatusError      = "error"
)

// Detail is the outcome of one target URL.
type Detail struct {
	Provider    string `json:"provider"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Products    int    `json:"products"`
	Created     int    `json:"created"`
	Error       string `json:"error,omitempty"`
}

// Report summarizes a full orchestration run. A target counts as
// succeeded only when it produced and saved at least one product;
// no_products and error both count as failed.
type Report struct {
	TotalProviders int           `json:"total_providers"`
	TotalURLs      int           `json:"total_urls"`
	Succeeded      int           `json:"successful_scrapes"`
	Failed         int           `json:"failed_scrapes"`
	TotalProducts  int           `json:"total_products"`
	Duration       time.Duration `json:"duration"`
	Details        []Detail      `json:"details"`
}

// AllFailed reports whether the run attempted targets and none
// succeeded. Callers use it to decide the process exit status.
func (r *Report) AllFailed() bool {
	return r.TotalURLs > 0 && r.Succeeded == 0
}

// ScrapeFunc scrapes one URL into normalized records.
type ScrapeFunc func(ctx context.Context, url string) ([]types.ProductRecord, error)

// SaveFunc persists one batch and returns (created, appended, err).
type SaveFunc func(ctx context.Context, records []types.ProductRecord, sourceURL, categorySlug string) (int, int, error)

// Runner walks the provider directory and scrapes every enabled target
// sequentially. One target's failure never stops the run; one batch's
// failure never affects another batch.
type Runner struct {
	providersDir string
	scrape       ScrapeFunc
	save         SaveFunc
	logger       *slog.Logger
}

// NewRunner creates an orchestrator over a providers directory.
func NewRunner(cfg *config.Config, scrape ScrapeFunc, save SaveFunc, logger *slog.Logger) *Runner {
	return &Runner{
		providersDir: cfg.AutoScrape.ProvidersDir,
		scrape:       scrape,
		save:         save,
		logger:       logger.With("component", "autoscrape"),
	}
}

// DiscoverProviders loads every provider subdirectory's targets.yaml,
// in name order. Providers with a missing or malformed configuration
// are skipped with a warning so one bad directory never blocks the
// rest.
func (r *Runner) DiscoverProviders() ([]Provider, error) {
	entries, err := os.ReadDir(r.providersDir)
	if err != nil {
		return nil, fmt.Errorf("read providers dir %s: %w", r.providersDir, err)
	}

	var providers []Provider
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		cfg, err := loadProviderConfig(filepath.Join(r.providersDir, name, targetsFile))
		if err != nil {
			r.logger.Warn("skipping provider", "provider", name,
				"error", &types.ConfigError{Provider: name, Err: err})
			continue
		}
		providers = append(providers, Provider{Name: name, Config: *cfg})
	}

	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Name < providers[j].Name
	})
	return providers, nil
}

func loadProviderConfig(path string) (*ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg ProviderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined")
	}
	return &cfg, nil
}

// RunAll scrapes every enabled target of every discovered provider and
// returns the aggregated report. The error is non-nil only when the
// provider directory itself cannot be read.
func (r *Runner) RunAll(ctx context.Context) (*Report, error) {
	providers, err := r.DiscoverProviders()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{TotalProviders: len(providers)}

	for _, provider := range providers {
		for _, target := range provider.Config.Targets {
			if !target.Enabled {
				r.logger.Debug("target not enabled", "provider", provider.Name, "url", target.URL)
				continue
			}
			report.TotalURLs++

			category := target.Category
			if category == "" {
				category = provider.Config.Category
			}

			detail := r.runTarget(ctx, provider.Name, target, category)
			report.Details = append(report.Details, detail)

			switch detail.Status {
			case StatusSuccess:
				report.Succeeded++
				report.TotalProducts += detail.Products
			default:
				report.Failed++
			}
		}
	}

	report.Duration = time.Since(start)
	r.logger.Info("auto-scrape finished",
		"providers", report.TotalProviders,
		"urls", report.TotalURLs,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"products", report.TotalProducts,
		"duration", report.Duration,
	)
	return report, nil
}

func (r *Runner) runTarget(ctx context.Context, provider string, target Target, category string) Detail {
	url := target.URL
	detail := Detail{Provider: provider, URL: url, Description: target.Description}

	records, err := r.scrape(ctx, url)
	if err != nil {
		r.logger.Warn("scrape failed", "provider", provider, "url", url, "error", err)
		detail.Status = StatusError
		detail.Error = err.Error()
		return detail
	}
	if len(records) == 0 {
		r.logger.Warn("scrape returned no products", "provider", provider, "url", url)
		detail.Status = StatusNoProducts
		return detail
	}

	created, appended, err := r.save(ctx, records, url, category)
	if err != nil {
		r.logger.Error("batch save failed", "provider", provider, "url", url, "error", err)
		detail.Status = StatusError
		detail.Error = err.Error()
		return detail
	}

	detail.Status = StatusSuccess
	detail.Products = appended
	detail.Created = created
	r.logger.Info("target scraped",
		"provider", provider,
		"url", url,
		"products", appended,
		"created", created,
	)
	return detail
}
