package scraper

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/voyagerhq/voyager/internal/fetcher"
	"github.com/voyagerhq/voyager/internal/types"
)

// SiteScraper defines the behavior of one per-site scraper plugin. It
// ensures that any new scraper we add follows a standard structure: a
// URL-ownership predicate, a fetch-mode selection, and a parse routine.
type SiteScraper interface {
	// Name identifies the scraper in logs and dumps.
	Name() string

	// Match reports whether this scraper owns the given URL.
	Match(url string) bool

	// Mode selects static or rendered fetching for this site.
	Mode() fetcher.Mode

	// Parse extracts zero or more product records from a fetched page.
	// Per-container failures are skipped inside Parse; an error means the
	// whole page was unusable.
	Parse(page *Page) ([]types.ProductRecord, error)
}

// Page is one fetched page handed to a scraper's Parse.
type Page struct {
	// URL is the page URL the content was fetched from.
	URL string

	// Body is the raw (or rendered) HTML.
	Body []byte

	doc *goquery.Document
}

// NewPage wraps fetched content for parsing.
func NewPage(url string, body []byte) *Page {
	return &Page{URL: url, Body: body}
}

// Document returns a parsed goquery document, lazily initializing it.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, &types.ParseError{URL: p.URL, Err: err}
	}
	p.doc = doc
	return doc, nil
}

// AbsoluteURL resolves a possibly relative href against the page URL.
// Unresolvable hrefs come back unchanged.
func (p *Page) AbsoluteURL(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(p.URL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
