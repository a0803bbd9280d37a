package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Two price-text normalization policies exist, and each scraper declares
// which one it uses by calling the matching function:
//
//   - ParsePrice: for currencies with a fractional unit. Comma and period
//     are disambiguated by position, so "1,234.50" and "1.234,50" both
//     mean 1234.50.
//   - ParseWholePrice: for currencies without a fractional unit. Every
//     separator is a grouping separator, so "8.999" means 8999.
//
// Mixing the policies misparses prices like "8.999" by three orders of
// magnitude, so a scraper must apply its declared policy consistently.

var priceStripRe = regexp.MustCompile(`[^0-9.,\-]`)

// ParsePrice parses a fractional-currency price string into a decimal.
func ParsePrice(text string) (decimal.Decimal, error) {
	numeric := priceStripRe.ReplaceAllString(text, "")
	// Abbreviated currency markers like "ден." leave a stray separator
	// at the edge after stripping.
	numeric = strings.Trim(numeric, ".,")
	if numeric == "" {
		return decimal.Zero, fmt.Errorf("no numeric value in %q", text)
	}

	// Disambiguate thousands vs decimal separators: the later of the two
	// separator kinds is the decimal point.
	if strings.Contains(numeric, ",") {
		lastComma := strings.LastIndex(numeric, ",")
		lastDot := strings.LastIndex(numeric, ".")
		if lastComma > lastDot {
			// European: 1.234,56
			numeric = strings.ReplaceAll(numeric, ".", "")
			numeric = strings.Replace(numeric, ",", ".", 1)
		} else {
			// US: 1,234.56
			numeric = strings.ReplaceAll(numeric, ",", "")
		}
	}

	price, err := decimal.NewFromString(numeric)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", text, err)
	}
	return price, nil
}

// ParseWholePrice parses a whole-unit-currency price string into an
// integral decimal, treating every comma and period as a grouping
// separator ("8.999" -> 8999).
func ParseWholePrice(text string) (decimal.Decimal, error) {
	numeric := priceStripRe.ReplaceAllString(text, "")
	numeric = strings.Trim(numeric, ".,")
	numeric = strings.ReplaceAll(numeric, ",", "")
	numeric = strings.ReplaceAll(numeric, ".", "")
	if numeric == "" || numeric == "-" {
		return decimal.Zero, fmt.Errorf("no numeric value in %q", text)
	}

	price, err := decimal.NewFromString(numeric)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse whole price %q: %w", text, err)
	}
	return price, nil
}
