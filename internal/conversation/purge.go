package conversation

import (
	"context"

	"pricetracker/internal/repository"
	"pricetracker/internal/session"

	"go.uber.org/zap"
)

// purgeEntry asks the user to confirm deleting everything.
func (d *Dispatcher) purgeEntry(ctx context.Context, ev Event) error {
	if err := d.setState(ctx, ev.UserID, session.State{Flow: FlowPurge, Step: StepAwaitingConfirmation}); err != nil {
		return err
	}
	return d.reply(ctx, ev, Reply{Text: msgPurgeConfirm, Keyboard: purgeKeyboard(), RichText: true})
}

// purgeConfirm deletes all of the user's items or backs out. The state is
// cleared either way.
func (d *Dispatcher) purgeConfirm(ctx context.Context, ev Event, st session.State) error {
	switch ev.CallbackData {
	case cbPurgeCancel:
		if err := d.answer(ctx, ev, ""); err != nil {
			d.logger.Warn("failed to answer callback", zap.Error(err))
		}
		if err := d.clearState(ctx, ev.UserID); err != nil {
			return err
		}
		return d.reply(ctx, ev, Reply{Text: msgPurgeCancelled})

	case cbPurgeConfirm:
		if err := d.answer(ctx, ev, ""); err != nil {
			d.logger.Warn("failed to answer callback", zap.Error(err))
		}
		if err := d.clearState(ctx, ev.UserID); err != nil {
			return err
		}

		var n int64
		err := d.store.InTx(ctx, func(tx repository.Tx) error {
			var err error
			n, err = tx.DeleteAllByUser(ctx, ev.UserID)
			return err
		})
		if err != nil {
			return err
		}

		d.logger.Info("purged items", zap.Int64("user_id", ev.UserID), zap.Int64("count", n))
		return d.reply(ctx, ev, Reply{Text: msgPurgeSuccess})

	default:
		d.ignoreCallback(ctx, ev, st)
		return nil
	}
}
