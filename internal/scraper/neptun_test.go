package scraper

import (
	"testing"
)

const neptunListing = `
<html><body>
<div class="theProduct">
  <a href="/product/laptop-lenovo-v15"><img data-src="/images/v15.jpg"></a>
  <h2>Lenovo V15 G4</h2>
  <span class="priceNum">24.999</span>
</div>
<div class="theProduct">
  <a href="https://www.neptun.mk/product/acer-nitro"><img src="/images/nitro.jpg"></a>
  <h2>Acer Nitro 5</h2>
  <div class="happyPrice"><span class="priceNum">54.999</span></div>
  <span class="priceNum">64.999</span>
</div>
<div class="theProduct">
  <h2>Card with no price</h2>
</div>
<div class="theProduct">
  <span class="priceNum">1.299</span>
</div>
</body></html>`

func TestNeptunParse(t *testing.T) {
	s := NewNeptunScraper()
	page := NewPage("https://www.neptun.mk/kategorii/laptopi", []byte(neptunListing))

	records, err := s.Parse(page)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Parse returned %d records, want 2 (broken cards skipped)", len(records))
	}

	first := records[0]
	if first.Name != "Lenovo V15 G4" {
		t.Errorf("name = %q", first.Name)
	}
	if first.Price.String() != "24999" {
		t.Errorf("price = %s, want 24999 (whole-denar policy)", first.Price)
	}
	if first.URL != "https://www.neptun.mk/product/laptop-lenovo-v15" {
		t.Errorf("url = %q, relative href not resolved", first.URL)
	}
	if first.Image != "https://www.neptun.mk/images/v15.jpg" {
		t.Errorf("image = %q, data-src fallback not applied", first.Image)
	}
	if first.Currency != "MKD" {
		t.Errorf("currency = %q", first.Currency)
	}

	second := records[1]
	if second.Price.String() != "54999" {
		t.Errorf("price = %s, want discounted 54999 over regular 64999", second.Price)
	}
}

func TestNeptunMatch(t *testing.T) {
	s := NewNeptunScraper()
	if !s.Match("https://www.neptun.mk/kategorii/laptopi") {
		t.Error("should match neptun.mk URLs")
	}
	if !s.Match("https://NEPTUN.mk/page") {
		t.Error("match should be case-insensitive")
	}
	if s.Match("https://www.anhoch.com/categories") {
		t.Error("should not match other stores")
	}
}

func TestNeptunEmptyPage(t *testing.T) {
	s := NewNeptunScraper()
	records, err := s.Parse(NewPage("https://www.neptun.mk/kategorii/laptopi", []byte("<html><body></body></html>")))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
