package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// HTTPFetcher downloads a page with a plain GET and strips it to text.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	maxRunes  int
}

// HTTPFetcherConfig holds HTTPFetcher settings.
type HTTPFetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
	MaxRunes  int
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 2 << 20
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		maxRunes:  cfg.MaxRunes,
	}
}

// Fetch returns the visible text of the page at url.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/plain") {
		return truncateRunes(string(body), f.maxRunes), nil
	}

	text, err := PageText(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to extract page text: %w", err)
	}
	return truncateRunes(text, f.maxRunes), nil
}

// PageText converts an HTML document to whitespace-collapsed text. The title
// and meta descriptions are kept since shops often put the product name there.
func PageText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	extractText(root, &sb, 0)

	text := sb.String()
	text = multiSpacePattern.ReplaceAllString(text, " ")
	text = multiNewlinePattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 200 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "template":
			return
		case "meta":
			name := getAttr(n, "name")
			if name == "" {
				name = getAttr(n, "property")
			}
			switch name {
			case "description", "og:title", "og:description", "product:price:amount", "product:price:currency":
				if c := getAttr(n, "content"); c != "" {
					sb.WriteString(name)
					sb.WriteString(": ")
					sb.WriteString(c)
					sb.WriteString("\n")
				}
			}
			return
		case "title":
			sb.WriteString("Title: ")
		case "p", "div", "section", "article", "h1", "h2", "h3", "h4", "li", "tr":
			sb.WriteString("\n")
		case "br":
			sb.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "title", "p", "div", "section", "article", "h1", "h2", "h3", "h4", "li", "tr":
			sb.WriteString("\n")
		}
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
