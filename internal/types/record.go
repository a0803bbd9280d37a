package types

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ProductRecord is a single normalized product extracted from one page.
// Name and Price are required; everything else is optional and may be
// filled in by the normalization pipeline or the save path.
type ProductRecord struct {
	// Name is the product title as shown on the listing.
	Name string `json:"name"`

	// Price is the observed price in Currency units. Always fixed-point
	// decimal; whole-unit currencies produce integral values.
	Price decimal.Decimal `json:"price"`

	// URL is the absolute product page URL. Defaults to the page the
	// record was scraped from when the listing carries no link.
	URL string `json:"url"`

	// Image is the absolute product image URL, empty if none was found.
	Image string `json:"image,omitempty"`

	// Category is a category slug attached by the scraper or the scrape
	// target configuration. Overrides the batch-level category on save.
	Category string `json:"category,omitempty"`

	// Currency is the ISO-ish currency code. Empty means "use the
	// configured default".
	Currency string `json:"currency,omitempty"`
}

// Valid reports whether the record satisfies the extraction contract:
// non-empty name and a positive price.
func (r *ProductRecord) Valid() bool {
	return r.Name != "" && r.Price.IsPositive()
}

// ToJSON serializes the record to JSON bytes.
func (r *ProductRecord) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
