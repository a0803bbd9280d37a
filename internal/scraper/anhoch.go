package scraper

import (
	"bytes"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/voyagerhq/voyager/internal/fetcher"
	"github.com/voyagerhq/voyager/internal/types"
)

// anhochScraper extracts products from anhoch.com category pages. The
// site serves complete listings statically, and prints prices in
// European format with an explicit fractional part ("1.599,00"), so this
// scraper uses the fractional-decimal policy.
type anhochScraper struct{}

// NewAnhochScraper creates the Anhoch site scraper.
func NewAnhochScraper() SiteScraper { return &anhochScraper{} }

func (s *anhochScraper) Name() string { return "anhoch" }

func (s *anhochScraper) Match(url string) bool {
	return strings.Contains(strings.ToLower(url), "anhoch")
}

func (s *anhochScraper) Mode() fetcher.Mode { return fetcher.ModeStatic }

// Parse traverses the product grid with XPath:
//   - container: div with a product-card class
//   - name: the card title anchor
//   - price: discounted price span, falling back to the regular one
//   - image: first img, src with data-src lazy-load fallback
func (s *anhochScraper) Parse(page *Page) ([]types.ProductRecord, error) {
	root, err := htmlquery.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &types.ParseError{URL: page.URL, Err: err}
	}

	containers, err := htmlquery.QueryAll(root, "//div[contains(@class, 'product-card')]")
	if err != nil {
		return nil, &types.ParseError{URL: page.URL, Selector: "product-card", Err: err}
	}

	var records []types.ProductRecord

	for _, container := range containers {
		nameNode := firstNode(container,
			".//a[contains(@class, 'product-name')]",
			".//h5/a",
			".//h5",
		)
		if nameNode == nil {
			continue
		}
		name := strings.TrimSpace(htmlquery.InnerText(nameNode))

		priceNode := firstNode(container,
			".//span[contains(@class, 'current-price')]",
			".//span[contains(@class, 'price')]",
		)
		if name == "" || priceNode == nil {
			continue
		}
		price, err := ParsePrice(htmlquery.InnerText(priceNode))
		if err != nil {
			continue
		}

		productURL := page.URL
		if link := firstNode(container, ".//a[@href]"); link != nil {
			productURL = page.AbsoluteURL(htmlquery.SelectAttr(link, "href"))
		}

		var image string
		if img := firstNode(container, ".//img"); img != nil {
			src := htmlquery.SelectAttr(img, "src")
			if src == "" {
				src = htmlquery.SelectAttr(img, "data-src")
			}
			if src != "" {
				image = page.AbsoluteURL(src)
			}
		}

		records = append(records, types.ProductRecord{
			Name:     name,
			Price:    price,
			URL:      productURL,
			Image:    image,
			Currency: "MKD",
		})
	}

	return records, nil
}

// firstNode returns the first node matched by any of the XPath
// expressions, in order.
func firstNode(root *html.Node, exprs ...string) *html.Node {
	for _, expr := range exprs {
		if node, err := htmlquery.Query(root, expr); err == nil && node != nil {
			return node
		}
	}
	return nil
}
