package fetcher

import "context"

// Mode selects how a scraper's pages are fetched.
type Mode int

const (
	// ModeStatic fetches with a plain HTTP GET.
	ModeStatic Mode = iota

	// ModeBrowser renders the page in a headless browser first. Used by
	// sites that build their listings with JavaScript.
	ModeBrowser
)

func (m Mode) String() string {
	if m == ModeBrowser {
		return "browser"
	}
	return "static"
}

// Fetcher retrieves the HTML content of a single URL.
type Fetcher interface {
	// Fetch retrieves the content at the given URL.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}
