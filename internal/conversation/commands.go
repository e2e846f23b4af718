package conversation

import (
	"context"

	"pricetracker/internal/model"
	"pricetracker/internal/repository"

	"go.uber.org/zap"
)

// start registers the user and sends the welcome text. /help shares it.
// Any flow in progress is left as is.
func (d *Dispatcher) start(ctx context.Context, ev Event) error {
	var created bool
	err := d.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		_, created, err = tx.GetOrCreateUser(ctx, ev.UserID)
		return err
	})
	if err != nil {
		return err
	}
	if created {
		d.logger.Info("user registered", zap.Int64("user_id", ev.UserID))
	}

	return d.reply(ctx, ev, Reply{Text: msgWelcome})
}

// list sends the user's tracked items without touching the flow state.
func (d *Dispatcher) list(ctx context.Context, ev Event) error {
	var items []model.TrackedItem
	err := d.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		items, err = tx.ListByUser(ctx, ev.UserID)
		return err
	})
	if err != nil {
		return err
	}

	d.logger.Info("listed items", zap.Int64("user_id", ev.UserID), zap.Int("count", len(items)))
	return d.reply(ctx, ev, Reply{Text: formatList(items), RichText: len(items) > 0})
}

// cancel abandons whatever the user was doing.
func (d *Dispatcher) cancel(ctx context.Context, ev Event) error {
	if err := d.clearState(ctx, ev.UserID); err != nil {
		return err
	}
	return d.reply(ctx, ev, Reply{Text: msgTrackCancelled})
}
