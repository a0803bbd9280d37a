package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voyagerhq/voyager/internal/fetcher"
	"github.com/voyagerhq/voyager/internal/types"
)

// genericExtractor is the fallback for URLs no registered scraper owns.
// It guesses product containers from common naming conventions; it is
// explicitly lower-fidelity than a site scraper and carries no
// correctness guarantees beyond best effort. Fractional-decimal price
// policy.
type genericExtractor struct {
	maxContainers int
}

// NewGenericExtractor creates the heuristic fallback extractor.
// maxContainers bounds work on malformed or enormous pages.
func NewGenericExtractor(maxContainers int) SiteScraper {
	if maxContainers <= 0 {
		maxContainers = 50
	}
	return &genericExtractor{maxContainers: maxContainers}
}

func (g *genericExtractor) Name() string { return "generic" }

// Match always reports false: the generic extractor is never dispatched
// by URL, only used as the explicit fallback.
func (g *genericExtractor) Match(string) bool { return false }

func (g *genericExtractor) Mode() fetcher.Mode { return fetcher.ModeStatic }

func (g *genericExtractor) Parse(page *Page) ([]types.ProductRecord, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	containers := g.findContainers(doc)
	if len(containers) > g.maxContainers {
		containers = containers[:g.maxContainers]
	}

	var records []types.ProductRecord
	for _, container := range containers {
		name := findName(container)
		priceText := findPriceText(container)
		if name == "" || priceText == "" {
			continue
		}
		price, err := ParsePrice(priceText)
		if err != nil || !price.IsPositive() {
			continue
		}

		productURL := page.URL
		if href, ok := container.Find("a[href]").First().Attr("href"); ok {
			productURL = page.AbsoluteURL(href)
		}

		records = append(records, types.ProductRecord{
			Name:  name,
			Price: price,
			URL:   productURL,
		})
	}

	return records, nil
}

// findContainers tries progressively weaker conventions for product
// containers: keyword-classed divs, then article tags, then
// product-classed list items.
func (g *genericExtractor) findContainers(doc *goquery.Document) []*goquery.Selection {
	containers := selectByClassKeyword(doc, "div", "product", "item", "card")
	if len(containers) == 0 {
		doc.Find("article").Each(func(i int, sel *goquery.Selection) {
			containers = append(containers, sel)
		})
	}
	if len(containers) == 0 {
		containers = selectByClassKeyword(doc, "li", "product")
	}
	return containers
}

func selectByClassKeyword(doc *goquery.Document, tag string, keywords ...string) []*goquery.Selection {
	var out []*goquery.Selection
	doc.Find(tag).Each(func(i int, sel *goquery.Selection) {
		class, ok := sel.Attr("class")
		if !ok {
			return
		}
		class = strings.ToLower(class)
		for _, kw := range keywords {
			if strings.Contains(class, kw) {
				out = append(out, sel)
				return
			}
		}
	})
	return out
}

// findName looks for a product title: a title-classed heading, any
// heading, a name-classed element, then a title-classed anchor.
func findName(container *goquery.Selection) string {
	candidates := []string{
		"h1[class*=title], h2[class*=title], h3[class*=title], h4[class*=title]",
		"h1, h2, h3, h4",
		"[class*=name]",
		"a[class*=title]",
	}
	for _, sel := range candidates {
		if text := strings.TrimSpace(container.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// findPriceText looks for anything price-classed inside the container.
func findPriceText(container *goquery.Selection) string {
	return strings.TrimSpace(container.Find("[class*=price]").First().Text())
}
