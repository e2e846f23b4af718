package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// BrowserFetcher renders pages in a headless Chrome so prices filled in by
// JavaScript are visible. The browser is launched on first use.
type BrowserFetcher struct {
	timeout  time.Duration
	maxRunes int
	logger   *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher creates a browser fetcher.
func NewBrowserFetcher(timeout time.Duration, maxRunes int, logger *zap.Logger) *BrowserFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserFetcher{timeout: timeout, maxRunes: maxRunes, logger: logger.Named("browser")}
}

func (f *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	f.logger.Info("headless browser started")
	f.browser = browser
	return browser, nil
}

// Fetch renders url and returns the page text.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	browser, err := f.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = page.Close() }()

	p := page.Context(ctx)
	if f.timeout > 0 {
		p = p.Timeout(f.timeout)
	}

	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	doc, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}

	text, err := PageText(doc)
	if err != nil {
		return "", fmt.Errorf("failed to extract page text: %w", err)
	}
	return truncateRunes(text, f.maxRunes), nil
}

// Close shuts the browser down if it was started.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}
