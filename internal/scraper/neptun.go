package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voyagerhq/voyager/internal/fetcher"
	"github.com/voyagerhq/voyager/internal/types"
)

// neptunScraper extracts products from neptun.mk listing pages. Neptun
// builds its listings with JavaScript, so pages are fetched rendered.
// Prices are denar (no fractional unit): whole-number policy.
type neptunScraper struct{}

// NewNeptunScraper creates the Neptun site scraper.
func NewNeptunScraper() SiteScraper { return &neptunScraper{} }

func (s *neptunScraper) Name() string { return "neptun" }

func (s *neptunScraper) Match(url string) bool {
	return strings.Contains(strings.ToLower(url), "neptun")
}

func (s *neptunScraper) Mode() fetcher.Mode { return fetcher.ModeBrowser }

// Parse walks Neptun's product grid:
//   - container: div.theProduct
//   - name: first h2 in the card body
//   - price: span.priceNum, preferring the discounted happyPrice block
//   - link: first anchor in the container
//   - image: first img, src with data-src lazy-load fallback
func (s *neptunScraper) Parse(page *Page) ([]types.ProductRecord, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	var records []types.ProductRecord

	doc.Find("div.theProduct").Each(func(i int, container *goquery.Selection) {
		name := strings.TrimSpace(container.Find("h2").First().Text())

		// Discounted price takes precedence over the regular one.
		priceText := strings.TrimSpace(container.Find("div.happyPrice span.priceNum").First().Text())
		if priceText == "" {
			priceText = strings.TrimSpace(container.Find("span.priceNum").First().Text())
		}
		if name == "" || priceText == "" {
			return
		}
		price, err := ParseWholePrice(priceText)
		if err != nil {
			return
		}

		productURL := page.URL
		if href, ok := container.Find("a[href]").First().Attr("href"); ok {
			productURL = page.AbsoluteURL(href)
		}

		var image string
		img := container.Find("img").First()
		if src, ok := img.Attr("src"); ok && src != "" {
			image = page.AbsoluteURL(src)
		} else if src, ok := img.Attr("data-src"); ok && src != "" {
			image = page.AbsoluteURL(src)
		}

		records = append(records, types.ProductRecord{
			Name:     name,
			Price:    price,
			URL:      productURL,
			Image:    image,
			Currency: "MKD",
		})
	})

	return records, nil
}
