package service

import (
	"context"
	"fmt"
	"html"

	"pricetracker/internal/conversation"
	"pricetracker/internal/metrics"
	"pricetracker/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlertDispatcher formats and sends price-drop notifications.
type AlertDispatcher struct {
	sender conversation.Sender
	logger *zap.Logger
}

// NewAlertDispatcher creates a new alert dispatcher.
func NewAlertDispatcher(sender conversation.Sender, logger *zap.Logger) *AlertDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertDispatcher{sender: sender, logger: logger.Named("alerts")}
}

// FormatAlert renders the alert for item at currentPrice.
func FormatAlert(item model.TrackedItem, currentPrice decimal.Decimal) string {
	return fmt.Sprintf(
		"🎉 Price Alert for <b>%s</b>!\n\n"+
			"💰 Current Price: <b>%s</b>\n"+
			"🎯 Your Target Price: <b>%s</b>\n\n"+
			"🔗 Check it out here: <a href=\"%s\">Link</a>\n\n"+
			"Act fast before it changes again!",
		html.EscapeString(item.Name),
		html.EscapeString(model.FormatMoney(item.Currency, currentPrice)),
		html.EscapeString(model.FormatMoney(item.Currency, item.TargetPrice)),
		html.EscapeString(item.Link),
	)
}

// SendAlert notifies userID that item dropped to currentPrice. Delivery
// failures are logged and dropped; the price update has already committed.
func (d *AlertDispatcher) SendAlert(ctx context.Context, item model.TrackedItem, currentPrice decimal.Decimal, userID int64) {
	err := d.sender.Send(ctx, userID, conversation.Reply{
		Text:     FormatAlert(item, currentPrice),
		RichText: true,
	})
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		d.logger.Error("failed to send price alert",
			zap.Int64("user_id", userID),
			zap.Int64("item_id", item.ID),
			zap.Error(err),
		)
		return
	}

	metrics.AlertsTotal.WithLabelValues("sent").Inc()
	d.logger.Info("sent price alert",
		zap.Int64("user_id", userID),
		zap.Int64("item_id", item.ID),
		zap.String("item", item.Name),
		zap.String("price", currentPrice.String()),
	)
}
