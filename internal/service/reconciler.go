package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pricetracker/internal/metrics"
	"pricetracker/internal/model"
	"pricetracker/internal/repository"
	"pricetracker/pkg/uid"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceScraper is the part of the scrape gateway the reconciler needs.
type PriceScraper interface {
	Scrape(ctx context.Context, url string) model.ScrapeResult
}

// Alerter sends price-drop notifications.
type Alerter interface {
	SendAlert(ctx context.Context, item model.TrackedItem, currentPrice decimal.Decimal, userID int64)
}

// ReconcilerConfig holds configuration for the reconciliation loop.
type ReconcilerConfig struct {
	// Interval is the pause before each pass.
	Interval time.Duration

	// ErrorCooldown is the extra pause after a pass that failed as a whole.
	ErrorCooldown time.Duration
}

// DefaultReconcilerConfig returns the default schedule.
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:      10 * time.Second,
		ErrorCooldown: 60 * time.Second,
	}
}

// PassStats summarises one reconciliation pass.
type PassStats struct {
	Users   int
	Items   int
	Skipped int
	Updated int
	Alerts  int
	Failed  int
}

// Reconciler periodically re-scrapes every tracked item, records the fresh
// price, and alerts the owner when it drops below their target.
type Reconciler struct {
	store   repository.Store
	scraper PriceScraper
	alerts  Alerter
	config  ReconcilerConfig
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconciler creates a new reconciler.
func NewReconciler(store repository.Store, scraper PriceScraper, alerts Alerter, config ReconcilerConfig, logger *zap.Logger) *Reconciler {
	def := DefaultReconcilerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.ErrorCooldown <= 0 {
		config.ErrorCooldown = def.ErrorCooldown
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		store:   store,
		scraper: scraper,
		alerts:  alerts,
		config:  config,
		logger:  logger.Named("reconciler"),
		now:     time.Now,
	}
}

// Start runs the loop in the background until Stop is called or ctx ends.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return
	}
	r.isRunning = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		r.Run(ctx)
	}()
}

// Stop cancels the loop and waits for the current pass to return.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
}

// Run sleeps for the interval, runs a pass, and repeats until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("started",
		zap.Duration("interval", r.config.Interval),
		zap.Duration("error_cooldown", r.config.ErrorCooldown),
	)
	defer r.logger.Info("stopped")

	for {
		if !sleep(ctx, r.config.Interval) {
			return
		}

		if _, err := r.RunNow(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("reconciliation pass failed, cooling down",
				zap.Duration("cooldown", r.config.ErrorCooldown),
				zap.Error(err),
			)
			if !sleep(ctx, r.config.ErrorCooldown) {
				return
			}
		}
	}
}

// RunNow runs one pass, turning a panic into an error.
func (r *Reconciler) RunNow(ctx context.Context) (stats PassStats, err error) {
	defer func() {
		if p := recover(); p != nil {
			metrics.PassesTotal.WithLabelValues("panic").Inc()
			err = fmt.Errorf("reconciliation pass panicked: %v", p)
		}
	}()
	return r.RunPass(ctx)
}

// RunPass visits every user's items once. Per-user and per-item failures are
// logged and counted; only a failure to list users fails the pass.
func (r *Reconciler) RunPass(ctx context.Context) (PassStats, error) {
	var stats PassStats
	log := r.logger.With(zap.String("pass_id", uid.New()))
	start := r.now()

	log.Info("starting price check for all users")

	var users []model.User
	err := r.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx)
		return err
	})
	if err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return stats, fmt.Errorf("failed to list users: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			metrics.PassesTotal.WithLabelValues("cancelled").Inc()
			return stats, err
		}
		stats.Users++

		var items []model.TrackedItem
		err := r.store.InTx(ctx, func(tx repository.Tx) error {
			var err error
			items, err = tx.ListByUser(ctx, u.ID)
			return err
		})
		if err != nil {
			log.Error("failed to list items", zap.Int64("user_id", u.ID), zap.Error(err))
			continue
		}

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				metrics.PassesTotal.WithLabelValues("cancelled").Inc()
				return stats, err
			}
			stats.Items++
			r.checkItem(ctx, log, item, u.ID, &stats)
		}
	}

	metrics.PassesTotal.WithLabelValues("ok").Inc()
	log.Info("completed price check for all users",
		zap.Int("users", stats.Users),
		zap.Int("items", stats.Items),
		zap.Int("skipped", stats.Skipped),
		zap.Int("updated", stats.Updated),
		zap.Int("alerts", stats.Alerts),
		zap.Int("failed", stats.Failed),
		zap.Duration("took", r.now().Sub(start)),
	)
	return stats, nil
}

// checkItem scrapes one item and records the result in its own transaction.
func (r *Reconciler) checkItem(ctx context.Context, log *zap.Logger, item model.TrackedItem, userID int64, stats *PassStats) {
	log = log.With(zap.Int64("user_id", userID), zap.Int64("item_id", item.ID))

	defer func() {
		if p := recover(); p != nil {
			stats.Failed++
			metrics.ItemsCheckedTotal.WithLabelValues("failed").Inc()
			log.Error("item check panicked", zap.String("panic", fmt.Sprint(p)))
		}
	}()

	res := r.scraper.Scrape(ctx, item.Link)
	if !res.IsTrackable || res.Price == nil {
		stats.Skipped++
		metrics.ItemsCheckedTotal.WithLabelValues("skipped").Inc()
		log.Warn("item is no longer trackable", zap.String("item", item.Name))
		return
	}

	fresh := *res.Price
	at := r.now()

	if item.BelowTarget(fresh) {
		log.Info("price drop detected",
			zap.String("item", item.Name),
			zap.String("from", item.CurrentPrice.String()),
			zap.String("to", fresh.String()),
		)
		err := r.store.InTx(ctx, func(tx repository.Tx) error {
			return tx.UpdatePrice(ctx, item.ID, fresh, at)
		})
		if err != nil {
			r.itemFailed(log, stats, "failed to update price", err)
			return
		}
		stats.Updated++
		metrics.ItemsCheckedTotal.WithLabelValues("updated").Inc()

		r.alerts.SendAlert(ctx, item, fresh, userID)
		stats.Alerts++
		return
	}

	err := r.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.MarkChecked(ctx, item.ID, at)
	})
	if err != nil {
		r.itemFailed(log, stats, "failed to update timestamps", err)
		return
	}
	metrics.ItemsCheckedTotal.WithLabelValues("checked").Inc()
	log.Debug("price above target", zap.String("price", fresh.String()))
}

func (r *Reconciler) itemFailed(log *zap.Logger, stats *PassStats, msg string, err error) {
	stats.Failed++
	metrics.ItemsCheckedTotal.WithLabelValues("failed").Inc()
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("item removed during pass")
		return
	}
	log.Error(msg, zap.Error(err))
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
