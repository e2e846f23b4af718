// Package scraper turns a product URL into a ScrapeResult. An Oracle does the
// actual work (fetch the page, ask a model what it sees); the Gateway wraps
// any Oracle with a bounded worker pool and failure containment.
package scraper

import (
	"context"

	"pricetracker/internal/model"
)

// Oracle extracts product information from a page. Implementations may be
// slow, may fail, and may return incomplete results.
type Oracle interface {
	Scrape(ctx context.Context, url string) (model.ScrapeResult, error)
}

// Fetcher loads a page and returns its visible text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Generator sends a prompt to a language model and returns its raw reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, url string) (model.ScrapeResult, error)

// Scrape calls f.
func (f OracleFunc) Scrape(ctx context.Context, url string) (model.ScrapeResult, error) {
	return f(ctx, url)
}
