package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricetracker/internal/metrics"
	"pricetracker/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Gateway gives callers a uniform contract over an Oracle: Scrape never
// returns an error and never panics. Oracle calls run on at most `workers`
// goroutines; callers just wait for the result.
type Gateway struct {
	oracle Oracle
	sem    *semaphore.Weighted
	logger *zap.Logger

	// workers run on base so an abandoned caller does not cut them short.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGateway creates a gateway with the given pool size.
func NewGateway(oracle Oracle, workers int, logger *zap.Logger) *Gateway {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Gateway{
		oracle: oracle,
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger.Named("scraper"),
		base:   base,
		cancel: cancel,
	}
}

// Scrape asks the oracle about url. Any failure, including an incomplete
// trackable answer, yields a not-trackable result. If ctx ends first the
// caller gets a not-trackable result and the worker finishes on its own.
func (g *Gateway) Scrape(ctx context.Context, url string) model.ScrapeResult {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeAbandoned).Inc()
		g.logger.Warn("scrape abandoned while waiting for a worker", zap.String("url", url), zap.Error(err))
		return model.NotTrackable()
	}

	done := make(chan model.ScrapeResult, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.sem.Release(1)
		done <- g.run(url)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeAbandoned).Inc()
		g.logger.Warn("scrape abandoned by caller", zap.String("url", url), zap.Error(ctx.Err()))
		return model.NotTrackable()
	}
}

func (g *Gateway) run(url string) (res model.ScrapeResult) {
	start := time.Now()
	metrics.ScrapesInFlight.Inc()
	defer func() {
		metrics.ScrapesInFlight.Dec()
		metrics.ScrapeDuration.Observe(time.Since(start).Seconds())
	}()

	defer func() {
		if r := recover(); r != nil {
			metrics.ScrapesTotal.WithLabelValues(metrics.OutcomePanic).Inc()
			g.logger.Error("oracle panicked", zap.String("url", url), zap.String("panic", fmt.Sprint(r)))
			res = model.NotTrackable()
		}
	}()

	g.logger.Info("starting scrape", zap.String("url", url))

	out, err := g.oracle.Scrape(g.base, url)
	if err != nil {
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		g.logger.Error("scrape failed", zap.String("url", url), zap.Error(err))
		return model.NotTrackable()
	}
	if !out.IsTrackable {
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeNotTrackable).Inc()
		g.logger.Info("page not trackable", zap.String("url", url))
		return model.NotTrackable()
	}
	if !out.Complete() {
		metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeIncomplete).Inc()
		g.logger.Warn("oracle returned an incomplete result", zap.String("url", url))
		return model.NotTrackable()
	}

	metrics.ScrapesTotal.WithLabelValues(metrics.OutcomeTrackable).Inc()
	g.logger.Info("scrape completed",
		zap.String("url", url),
		zap.String("product", *out.ProductName),
		zap.String("price", out.Price.String()),
		zap.Duration("took", time.Since(start)),
	)
	return out
}

// Close cancels in-flight oracle calls and waits for the workers to exit.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}
