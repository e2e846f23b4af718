package main

import (
	"fmt"

	"pricetracker/internal/service"
	"pricetracker/internal/telegram"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one reconciliation pass and exit",
	Long: `Re-checks every tracked item once, exactly like one tick of the background
loop, including price updates and alerts. Useful from cron or for debugging.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateRuntime(); err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		gateway, release, err := newGateway(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer release()

		api, err := telegram.NewAPI(cfg.Telegram.Token, cfg.App.Debug, logger)
		if err != nil {
			return err
		}
		alerts := service.NewAlertDispatcher(telegram.NewSender(api, logger), logger)

		reconciler := service.NewReconciler(store, gateway, alerts, service.ReconcilerConfig{
			Interval:      cfg.Tracker.Interval(),
			ErrorCooldown: cfg.Tracker.ErrorCooldown,
		}, logger)

		stats, err := reconciler.RunNow(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "users=%d items=%d updated=%d alerts=%d skipped=%d failed=%d\n",
			stats.Users, stats.Items, stats.Updated, stats.Alerts, stats.Skipped, stats.Failed)
		return nil
	},
}
