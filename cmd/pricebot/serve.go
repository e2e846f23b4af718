package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"pricetracker/internal/conversation"
	"pricetracker/internal/handler"
	"pricetracker/internal/router"
	"pricetracker/internal/service"
	"pricetracker/internal/session"
	"pricetracker/internal/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the price loop and the ops HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateRuntime(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	logger.Info("starting pricebot", zap.String("env", cfg.App.Environment), zap.String("mode", cfg.Telegram.Mode))

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := session.Open(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer sessions.Close()
	logger.Info("session store ready", zap.String("store", cfg.Session.Store))

	gateway, release, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	api, err := telegram.NewAPI(cfg.Telegram.Token, cfg.App.Debug, logger)
	if err != nil {
		return err
	}
	sender := telegram.NewSender(api, logger)

	dispatcher := conversation.NewDispatcher(store, sessions, gateway, sender,
		conversation.Config{MaxItems: cfg.Tracker.MaxItemLimit}, logger)
	bot := telegram.NewBot(api, dispatcher, logger)

	reconciler := service.NewReconciler(store, gateway, service.NewAlertDispatcher(sender, logger),
		service.ReconcilerConfig{
			Interval:      cfg.Tracker.Interval(),
			ErrorCooldown: cfg.Tracker.ErrorCooldown,
		}, logger)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	webhook := cfg.Telegram.Mode == "webhook"
	var srv *http.Server
	if cfg.Server.Enabled {
		rc := router.Config{
			Handler: handler.New(handler.Config{
				Service:  cfg.App.Name,
				Version:  cfg.App.Version,
				Store:    store,
				Sessions: sessions,
				Logger:   logger,
			}),
			Logger: logger,
		}
		if webhook {
			u, err := url.Parse(cfg.Telegram.WebhookURL)
			if err != nil {
				return fmt.Errorf("invalid TELEGRAM_WEBHOOK_URL: %w", err)
			}
			rc.Webhook = bot.Webhook
			rc.WebhookPath = u.Path
			if rc.WebhookPath == "" {
				rc.WebhookPath = "/"
			}
			rc.WebhookSecret = cfg.Telegram.WebhookSecret
		}

		srv = &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router.New(rc),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	intake := func(ctx context.Context) error {
		return bot.Poll(ctx, cfg.Telegram.PollTimeout)
	}
	if webhook {
		intake = func(ctx context.Context) error {
			if err := bot.SetWebhook(cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		}
	}

	logger.Info("pricebot running")
	err = runServices(ctx, srv, cfg.Server.ShutdownTimeout, intake)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := bot.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("in-flight updates abandoned", zap.Error(serr))
	}

	logger.Info("pricebot stopped")
	return err
}

// runServices runs the ops server, when srv is set, next to the update
// intake. The first failure or the end of ctx stops both; the server is
// drained within shutdownTimeout before runServices returns.
func runServices(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, intake func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error {
			logger.Info("ops server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return intake(gctx)
	})

	return g.Wait()
}
