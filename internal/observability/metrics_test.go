package observability

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSnapshot(t *testing.T) {
	m := NewMetrics(slog.New(slog.DiscardHandler))
	m.ScrapesTotal.Add(3)
	m.ScrapesFailed.Add(1)
	m.PricesAppended.Add(7)

	snap := m.Snapshot()
	if snap["scrapes_total"] != 3 {
		t.Errorf("scrapes_total = %d, want 3", snap["scrapes_total"])
	}
	if snap["scrapes_failed"] != 1 {
		t.Errorf("scrapes_failed = %d, want 1", snap["scrapes_failed"])
	}
	if snap["prices_appended"] != 7 {
		t.Errorf("prices_appended = %d, want 7", snap["prices_appended"])
	}
	if snap["products_created"] != 0 {
		t.Errorf("products_created = %d, want 0", snap["products_created"])
	}
}

func TestPrometheusExposition(t *testing.T) {
	m := NewMetrics(slog.New(slog.DiscardHandler))
	m.ScrapesTotal.Add(5)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "voyager_scrapes_total 5") {
		t.Errorf("counter value missing:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE voyager_scrapes_total counter") {
		t.Errorf("TYPE line missing:\n%s", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}
