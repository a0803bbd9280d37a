package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational counters for the scraper and save paths.
type Metrics struct {
	// Scrape metrics
	ScrapesTotal     atomic.Int64
	ScrapesFailed    atomic.Int64
	RecordsExtracted atomic.Int64

	// Persistence metrics
	BatchesSaved    atomic.Int64
	BatchesFailed   atomic.Int64
	ProductsCreated atomic.Int64
	PricesAppended  atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"voyager_scrapes_total", "Total scrape attempts", m.ScrapesTotal.Load()},
		{"voyager_scrapes_failed_total", "Total failed scrapes", m.ScrapesFailed.Load()},
		{"voyager_records_extracted_total", "Total product records extracted", m.RecordsExtracted.Load()},
		{"voyager_batches_saved_total", "Total batches committed", m.BatchesSaved.Load()},
		{"voyager_batches_failed_total", "Total batches rolled back", m.BatchesFailed.Load()},
		{"voyager_products_created_total", "Total new products created", m.ProductsCreated.Load()},
		{"voyager_prices_appended_total", "Total price snapshots appended", m.PricesAppended.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all counters as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"scrapes_total":     m.ScrapesTotal.Load(),
		"scrapes_failed":    m.ScrapesFailed.Load(),
		"records_extracted": m.RecordsExtracted.Load(),
		"batches_saved":     m.BatchesSaved.Load(),
		"batches_failed":    m.BatchesFailed.Load(),
		"products_created":  m.ProductsCreated.Load(),
		"prices_appended":   m.PricesAppended.Load(),
	}
}
