package scraper

import (
	"testing"
)

const anhochListing = `
<html><body>
<div class="product-card mb-3">
  <a href="/product/ryzen-7-7800x3d" class="product-name">AMD Ryzen 7 7800X3D</a>
  <img src="/img/ryzen.jpg">
  <span class="current-price">24.599,00 ден</span>
  <span class="price old">27.999,00 ден</span>
</div>
<div class="product-card">
  <h5><a href="https://www.anhoch.com/product/rtx-4070">GeForce RTX 4070</a></h5>
  <img data-src="/img/4070.jpg" src="">
  <span class="price">38.999,00 ден</span>
</div>
<div class="product-card">
  <a class="product-name" href="/product/no-price">No price here</a>
</div>
</body></html>`

func TestAnhochParse(t *testing.T) {
	s := NewAnhochScraper()
	page := NewPage("https://www.anhoch.com/categories/procesori/products", []byte(anhochListing))

	records, err := s.Parse(page)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Parse returned %d records, want 2", len(records))
	}

	first := records[0]
	if first.Name != "AMD Ryzen 7 7800X3D" {
		t.Errorf("name = %q", first.Name)
	}
	if first.Price.String() != "24599" {
		t.Errorf("price = %s, want discounted 24599 (fractional policy)", first.Price)
	}
	if first.URL != "https://www.anhoch.com/product/ryzen-7-7800x3d" {
		t.Errorf("url = %q", first.URL)
	}
	if first.Image != "https://www.anhoch.com/img/ryzen.jpg" {
		t.Errorf("image = %q", first.Image)
	}

	second := records[1]
	if second.Name != "GeForce RTX 4070" {
		t.Errorf("name = %q, h5 fallback not applied", second.Name)
	}
	if second.Price.String() != "38999" {
		t.Errorf("price = %s", second.Price)
	}
	if second.Image != "https://www.anhoch.com/img/4070.jpg" {
		t.Errorf("image = %q, data-src fallback not applied", second.Image)
	}
}

func TestAnhochMatch(t *testing.T) {
	s := NewAnhochScraper()
	if !s.Match("https://www.anhoch.com/categories/procesori") {
		t.Error("should match anhoch.com URLs")
	}
	if s.Match("https://www.neptun.mk/kategorii") {
		t.Error("should not match other stores")
	}
}
