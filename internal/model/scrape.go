package model

import "github.com/shopspring/decimal"

// ScrapeResult is what the scraping oracle extracted from a page.
// Optional fields are nil unless IsTrackable is true.
type ScrapeResult struct {
	IsTrackable bool             `json:"is_trackable"`
	ProductName *string          `json:"product_name"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency"`
}

// NotTrackable is the result returned for any page that cannot be tracked.
func NotTrackable() ScrapeResult {
	return ScrapeResult{}
}

// Trackable builds a complete result for a product page.
func Trackable(name string, price decimal.Decimal, currency string) ScrapeResult {
	return ScrapeResult{
		IsTrackable: true,
		ProductName: &name,
		Price:       &price,
		Currency:    &currency,
	}
}

// Complete reports whether a trackable result carries every product field.
func (r ScrapeResult) Complete() bool {
	return r.IsTrackable && r.ProductName != nil && *r.ProductName != "" &&
		r.Price != nil && !r.Price.IsNegative() &&
		r.Currency != nil && *r.Currency != ""
}
