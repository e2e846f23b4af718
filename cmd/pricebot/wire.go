package main

import (
	"context"
	"fmt"

	"pricetracker/internal/config"
	"pricetracker/internal/repository"
	"pricetracker/internal/scraper"

	"go.uber.org/zap"
)

// openStore connects to the configured database and makes sure the schema exists.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.SQLStore, error) {
	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// newGateway builds the page fetcher, the LLM oracle and the bounded worker
// pool in front of them. The returned func releases all of it.
func newGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*scraper.Gateway, func(), error) {
	var (
		fetcher scraper.Fetcher
		release = func() {}
	)
	switch cfg.Scraper.Fetcher {
	case "browser":
		bf := scraper.NewBrowserFetcher(cfg.Scraper.FetchTimeout, cfg.Scraper.MaxTextRunes, logger)
		fetcher = bf
		release = func() {
			if err := bf.Close(); err != nil {
				logger.Warn("failed to close browser", zap.Error(err))
			}
		}
	default:
		fetcher = scraper.NewHTTPFetcher(scraper.HTTPFetcherConfig{
			Timeout:   cfg.Scraper.FetchTimeout,
			UserAgent: cfg.Scraper.UserAgent,
			MaxBytes:  cfg.Scraper.MaxPageBytes,
			MaxRunes:  cfg.Scraper.MaxTextRunes,
		})
	}

	generator, err := scraper.NewGenAIGenerator(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature())
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	gateway := scraper.NewGateway(scraper.NewLLMOracle(fetcher, generator), cfg.Scraper.Workers, logger)
	logger.Info("scraper ready",
		zap.String("fetcher", cfg.Scraper.Fetcher),
		zap.String("model", cfg.LLM.Model),
		zap.Int("workers", cfg.Scraper.Workers),
	)

	return gateway, func() {
		gateway.Close()
		release()
	}, nil
}
