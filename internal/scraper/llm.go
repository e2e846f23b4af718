package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pricetracker/internal/model"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// GenAIGenerator sends prompts to Gemini through the genai SDK.
type GenAIGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenAIGenerator creates a Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, apiKey, modelName string, temperature float32) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("LLM API key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{client: client, model: modelName, temperature: temperature}, nil
}

// Generate returns the model's text reply, asking for JSON output.
func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}

// LLMOracle fetches a page and asks a language model to read the product
// details off it.
type LLMOracle struct {
	fetcher   Fetcher
	generator Generator
}

// NewLLMOracle creates an oracle from a fetcher and a generator.
func NewLLMOracle(fetcher Fetcher, generator Generator) *LLMOracle {
	return &LLMOracle{fetcher: fetcher, generator: generator}
}

// Scrape implements Oracle.
func (o *LLMOracle) Scrape(ctx context.Context, url string) (model.ScrapeResult, error) {
	text, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		return model.ScrapeResult{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	if strings.TrimSpace(text) == "" {
		return model.NotTrackable(), nil
	}

	reply, err := o.generator.Generate(ctx, buildPrompt(url, text))
	if err != nil {
		return model.ScrapeResult{}, err
	}

	return parseReply(reply)
}

// extraction is the JSON shape the model is asked to answer with. Price is
// kept raw because models send it as a number, a string, or null.
type extraction struct {
	IsTrackable bool            `json:"is_trackable"`
	ProductName *string         `json:"product_name"`
	Price       json.RawMessage `json:"price"`
	Currency    *string         `json:"currency"`
}

// parseReply decodes the model's answer. A reply that says it is trackable
// but lacks a field is returned as-is; the gateway decides what to do with it.
func parseReply(reply string) (model.ScrapeResult, error) {
	body := stripFences(reply)

	var ex extraction
	if err := json.Unmarshal([]byte(body), &ex); err != nil {
		return model.ScrapeResult{}, fmt.Errorf("malformed oracle reply: %w", err)
	}
	if !ex.IsTrackable {
		return model.NotTrackable(), nil
	}

	res := model.ScrapeResult{IsTrackable: true}
	if ex.ProductName != nil {
		name := strings.TrimSpace(*ex.ProductName)
		res.ProductName = &name
	}
	if ex.Currency != nil {
		cur := strings.TrimSpace(*ex.Currency)
		res.Currency = &cur
	}

	price, err := parsePrice(ex.Price)
	if err != nil {
		return model.ScrapeResult{}, err
	}
	res.Price = price
	return res, nil
}

// parsePrice accepts 1999, 1999.99, "1,999", or null.
func parsePrice(raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	s := string(raw)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("malformed price: %w", err)
		}
	}
	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return nil, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("malformed price %q: %w", string(raw), err)
	}
	return &d, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
