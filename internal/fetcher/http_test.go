package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/types"
)

func newStaticFetcher(t *testing.T) *StaticFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	f := NewStaticFetcher(cfg, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { f.Close() })
	return f
}

func TestStaticFetchOK(t *testing.T) {
	const page = "<html><body>ok</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.Contains(got, "Mozilla") {
			t.Errorf("User-Agent = %q", got)
		}
		w.Write([]byte(page))
	}))
	defer srv.Close()

	body, err := newStaticFetcher(t).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(body) != page {
		t.Errorf("body = %q", body)
	}
}

func TestStaticFetchNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := newStaticFetcher(t).Fetch(context.Background(), srv.URL)
	var fetchErr *types.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error type = %T, want *types.FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusGone {
		t.Errorf("status = %d, want 410", fetchErr.StatusCode)
	}
}

func TestStaticFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := newStaticFetcher(t).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, types.ErrEmptyResponse) {
		t.Fatalf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestStaticFetchGzip(t *testing.T) {
	const page = "<html><body>compressed</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(page))
		gz.Close()
	}))
	defer srv.Close()

	body, err := newStaticFetcher(t).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(body) != page {
		t.Errorf("body = %q, gzip not decompressed", body)
	}
}

func TestStaticFetchRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newStaticFetcher(t).Fetch(ctx, srv.URL); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestModeString(t *testing.T) {
	if ModeStatic.String() != "static" || ModeBrowser.String() != "browser" {
		t.Errorf("Mode strings = %q, %q", ModeStatic, ModeBrowser)
	}
}
