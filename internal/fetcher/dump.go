package fetcher

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dumper writes fetched pages to disk for offline debugging. It is a side
// effect only: every failure is logged and swallowed, never surfaced to
// the scrape path.
type Dumper struct {
	dir    string
	logger *slog.Logger
}

// NewDumper creates a dumper. An empty dir disables dumping.
func NewDumper(dir string, logger *slog.Logger) *Dumper {
	return &Dumper{dir: dir, logger: logger.With("component", "dumper")}
}

// Dump writes one fetched page to the dump directory.
func (d *Dumper) Dump(mode, rawURL string, body []byte) {
	if d.dir == "" {
		return
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.logger.Warn("dump dir create failed", "dir", d.dir, "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s_%s.html", mode, safeHost(rawURL), time.Now().Format("20060102_150405"))
	path := filepath.Join(d.dir, name)

	if err := os.WriteFile(path, body, 0o644); err != nil {
		d.logger.Warn("dump write failed", "path", path, "error", err)
		return
	}

	d.logger.Debug("response dumped", "path", path, "size", len(body))
}

func safeHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "page"
	}
	return strings.ReplaceAll(u.Hostname(), ".", "_")
}
