package conversation

import (
	"context"
	"strconv"

	"pricetracker/internal/model"
	"pricetracker/internal/repository"
	"pricetracker/internal/session"

	"go.uber.org/zap"
)

// removeEntry shows the user's items as a numbered list with one button each.
func (d *Dispatcher) removeEntry(ctx context.Context, ev Event) error {
	if err := d.clearState(ctx, ev.UserID); err != nil {
		return err
	}
	return d.showRemoveList(ctx, ev)
}

func (d *Dispatcher) showRemoveList(ctx context.Context, ev Event) error {
	var items []model.TrackedItem
	err := d.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		items, err = tx.ListByUser(ctx, ev.UserID)
		return err
	})
	if err != nil {
		return err
	}

	if len(items) == 0 {
		if err := d.clearState(ctx, ev.UserID); err != nil {
			return err
		}
		return d.reply(ctx, ev, Reply{Text: msgRemoveNoItems})
	}

	if err := d.setState(ctx, ev.UserID, session.State{Flow: FlowRemove, Step: StepAwaitingItemSelection}); err != nil {
		return err
	}
	return d.reply(ctx, ev, Reply{
		Text:     formatRemoveList(items),
		Keyboard: itemsKeyboard(items),
		RichText: true,
	})
}

// removeSelect deletes the chosen item if it belongs to the user.
func (d *Dispatcher) removeSelect(ctx context.Context, ev Event, st session.State) error {
	itemID, err := strconv.ParseInt(ev.CallbackData, 10, 64)
	if err != nil {
		d.ignoreCallback(ctx, ev, st)
		return nil
	}

	var removed bool
	err = d.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		removed, err = tx.DeleteByID(ctx, itemID, ev.UserID)
		return err
	})
	if err != nil {
		return err
	}

	if !removed {
		d.logger.Info("remove rejected", zap.Int64("user_id", ev.UserID), zap.Int64("item_id", itemID))
		if err := d.answer(ctx, ev, msgRemoveNotFound); err != nil {
			return err
		}
		return d.clearState(ctx, ev.UserID)
	}

	d.logger.Info("item removed", zap.Int64("user_id", ev.UserID), zap.Int64("item_id", itemID))
	if err := d.answer(ctx, ev, msgRemoveSuccess); err != nil {
		d.logger.Warn("failed to answer callback", zap.Error(err))
	}

	if err := d.setState(ctx, ev.UserID, session.State{Flow: FlowRemove, Step: StepAwaitingRepeatConfirmation}); err != nil {
		return err
	}
	return d.reply(ctx, ev, Reply{Text: msgRemoveAnother, Keyboard: removeAnotherKeyboard()})
}

// removeRepeat either shows a fresh list or ends the flow.
func (d *Dispatcher) removeRepeat(ctx context.Context, ev Event, st session.State) error {
	switch ev.CallbackData {
	case cbRemoveYes:
		if err := d.answer(ctx, ev, ""); err != nil {
			d.logger.Warn("failed to answer callback", zap.Error(err))
		}
		return d.showRemoveList(ctx, ev)

	case cbRemoveNo:
		if err := d.answer(ctx, ev, msgRemoveComplete); err != nil {
			d.logger.Warn("failed to answer callback", zap.Error(err))
		}
		if err := d.clearState(ctx, ev.UserID); err != nil {
			return err
		}
		return d.reply(ctx, ev, Reply{Text: msgRemoveStartOver})

	default:
		d.ignoreCallback(ctx, ev, st)
		return nil
	}
}
