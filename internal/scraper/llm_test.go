package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

type fakeFetcher struct {
	text string
	err  error
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.text, f.err
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		trackable bool
		price     string
		wantErr   bool
	}{
		{name: "numeric price", reply: `{"is_trackable": true, "product_name": "Widget", "price": 1999.5, "currency": "₹"}`, trackable: true, price: "1999.5"},
		{name: "string price with commas", reply: `{"is_trackable": true, "product_name": "Widget", "price": "1,99,999", "currency": "₹"}`, trackable: true, price: "199999"},
		{name: "fenced json", reply: "```json\n{\"is_trackable\": true, \"product_name\": \"Widget\", \"price\": 25, \"currency\": \"$\"}\n```", trackable: true, price: "25"},
		{name: "not a product", reply: `{"is_trackable": false, "product_name": null, "price": null, "currency": null}`},
		{name: "garbage", reply: `I could not read that page`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseReply(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.trackable, res.IsTrackable)
			if tt.price != "" {
				require.NotNil(t, res.Price)
				assert.True(t, res.Price.Equal(decimal.RequireFromString(tt.price)), res.Price.String())
			}
		})
	}
}

func TestParseReply_NullPriceIsIncomplete(t *testing.T) {
	res, err := parseReply(`{"is_trackable": true, "product_name": "Widget", "price": null, "currency": "$"}`)
	require.NoError(t, err)
	assert.True(t, res.IsTrackable)
	assert.Nil(t, res.Price)
	assert.False(t, res.Complete())
}

func TestLLMOracle(t *testing.T) {
	gen := &fakeGenerator{reply: `{"is_trackable": true, "product_name": "Widget", "price": 25.0, "currency": "$"}`}
	o := NewLLMOracle(fakeFetcher{text: "Widget only $25.00"}, gen)

	res, err := o.Scrape(context.Background(), "https://shop.example/widget")
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, "Widget", *res.ProductName)
	assert.Contains(t, gen.prompt, "https://shop.example/widget")
	assert.Contains(t, gen.prompt, "Widget only $25.00")
	assert.Contains(t, gen.prompt, `"is_trackable"`)
}

func TestLLMOracle_Errors(t *testing.T) {
	_, err := NewLLMOracle(fakeFetcher{err: errors.New("dial tcp: timeout")}, &fakeGenerator{}).
		Scrape(context.Background(), "https://shop.example/x")
	assert.Error(t, err)

	_, err = NewLLMOracle(fakeFetcher{text: "page"}, &fakeGenerator{err: errors.New("quota")}).
		Scrape(context.Background(), "https://shop.example/x")
	assert.Error(t, err)

	res, err := NewLLMOracle(fakeFetcher{text: "   "}, &fakeGenerator{}).
		Scrape(context.Background(), "https://shop.example/x")
	require.NoError(t, err)
	assert.False(t, res.IsTrackable)
}

func TestPageText(t *testing.T) {
	doc := `<html><head><title>Widget | Shop</title>
<meta property="og:title" content="Blue Widget">
<style>.x{color:red}</style><script>var price = 1;</script></head>
<body><h1>Blue Widget</h1><p>Price:   <span>$25.00</span></p></body></html>`

	text, err := PageText(doc)
	require.NoError(t, err)
	assert.Contains(t, text, "Title: Widget | Shop")
	assert.Contains(t, text, "og:title: Blue Widget")
	assert.Contains(t, text, "$25.00")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "var price")
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/widget":
			assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><h1>Widget</h1><p>`+strings.Repeat("a", 100)+`</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPFetcherConfig{UserAgent: "test-agent", MaxRunes: 20})
	defer f.client.CloseIdleConnections()

	text, err := f.Fetch(context.Background(), srv.URL+"/widget")
	require.NoError(t, err)
	assert.Len(t, []rune(text), 20)
	assert.True(t, strings.HasPrefix(text, "Widget"))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
