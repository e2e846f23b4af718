package conversation

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"pricetracker/internal/model"
	"pricetracker/internal/repository"
	"pricetracker/internal/session"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Keys in the track flow's state data.
const (
	keyLink         = "link"
	keyName         = "name"
	keyCurrentPrice = "current_price"
	keyCurrency     = "currency"
	keyTargetPrice  = "target_price"
)

// trackEntry starts the track flow if the user has room for another item.
func (d *Dispatcher) trackEntry(ctx context.Context, ev Event) error {
	if err := d.clearState(ctx, ev.UserID); err != nil {
		return err
	}

	var count int
	err := d.store.InTx(ctx, func(tx repository.Tx) error {
		if _, _, err := tx.GetOrCreateUser(ctx, ev.UserID); err != nil {
			return err
		}
		var err error
		count, err = tx.CountForUser(ctx, ev.UserID)
		return err
	})
	if err != nil {
		return err
	}

	if !repository.HasCapacity(count, d.config.MaxItems) {
		d.logger.Info("tracking limit reached", zap.Int64("user_id", ev.UserID), zap.Int("count", count))
		return d.reply(ctx, ev, Reply{Text: msgTrackLimit})
	}

	if err := d.setState(ctx, ev.UserID, session.State{Flow: FlowTrack, Step: StepAwaitingLink}); err != nil {
		return err
	}
	return d.reply(ctx, ev, Reply{Text: msgTrackRequestLink})
}

// trackLink checks the submitted link with the scraper.
func (d *Dispatcher) trackLink(ctx context.Context, ev Event, st session.State) error {
	link := strings.TrimSpace(ev.Text)
	if !validProductURL(link) {
		return d.reply(ctx, ev, Reply{Text: msgTrackInvalidURL})
	}

	d.logger.Info("processing link", zap.Int64("user_id", ev.UserID), zap.String("url", link))
	if err := d.reply(ctx, ev, Reply{Text: msgTrackProcessing}); err != nil {
		return err
	}

	res := d.scraper.Scrape(ctx, link)
	if !res.Complete() {
		if err := d.clearState(ctx, ev.UserID); err != nil {
			return err
		}
		return d.reply(ctx, ev, Reply{Text: msgTrackCannotTrack})
	}

	if err := d.reply(ctx, ev, Reply{Text: msgTrackCanTrack}); err != nil {
		return err
	}

	next := st.With(keyLink, link).
		With(keyName, *res.ProductName).
		With(keyCurrentPrice, res.Price.String()).
		With(keyCurrency, *res.Currency)
	next.Step = StepAwaitingTargetPrice
	if err := d.setState(ctx, ev.UserID, next); err != nil {
		return err
	}

	return d.reply(ctx, ev, Reply{
		Text:     formatProductDetails(*res.ProductName, *res.Price, *res.Currency, link),
		RichText: true,
	})
}

// trackTargetPrice validates the target and asks for confirmation.
func (d *Dispatcher) trackTargetPrice(ctx context.Context, ev Event, st session.State) error {
	target, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil {
		return d.reply(ctx, ev, Reply{Text: msgTrackInvalidPrice})
	}
	if target <= 0 {
		return d.reply(ctx, ev, Reply{Text: msgTrackPriceTooLow})
	}

	current, err := decimal.NewFromString(st.Get(keyCurrentPrice))
	if err != nil {
		return fmt.Errorf("stored current price: %w", err)
	}

	next := st.With(keyTargetPrice, strconv.Itoa(target))
	next.Step = StepAwaitingConfirmation
	if err := d.setState(ctx, ev.UserID, next); err != nil {
		return err
	}

	return d.reply(ctx, ev, Reply{
		Text: formatConfirmation(st.Get(keyName), current, decimal.NewFromInt(int64(target)),
			st.Get(keyCurrency), st.Get(keyLink)),
		Keyboard: trackConfirmKeyboard(),
		RichText: true,
	})
}

// trackConfirm saves or discards the item. Other buttons are ignored.
func (d *Dispatcher) trackConfirm(ctx context.Context, ev Event, st session.State) error {
	switch ev.CallbackData {
	case cbTrackConfirm:
		if err := d.answer(ctx, ev, ""); err != nil {
			d.logger.Warn("failed to answer callback", zap.Error(err))
		}

		in, err := newItemFromState(ev.UserID, st)
		if err != nil {
			return err
		}

		var item model.TrackedItem
		err = d.store.InTx(ctx, func(tx repository.Tx) error {
			var err error
			item, err = tx.CreateItem(ctx, in)
			return err
		})
		if err != nil {
			return err
		}
		d.logger.Info("item tracked", zap.Int64("user_id", ev.UserID), zap.Int64("item_id", item.ID))

		if err := d.clearState(ctx, ev.UserID); err != nil {
			return err
		}
		return d.reply(ctx, ev, Reply{Text: msgTrackSuccess})

	case cbTrackCancel:
		if err := d.answer(ctx, ev, ""); err != nil {
			d.logger.Warn("failed to answer callback", zap.Error(err))
		}
		if err := d.clearState(ctx, ev.UserID); err != nil {
			return err
		}
		return d.reply(ctx, ev, Reply{Text: msgTrackCancelled})

	default:
		d.ignoreCallback(ctx, ev, st)
		return nil
	}
}

func newItemFromState(userID int64, st session.State) (model.NewTrackedItem, error) {
	current, err := decimal.NewFromString(st.Get(keyCurrentPrice))
	if err != nil {
		return model.NewTrackedItem{}, fmt.Errorf("stored current price: %w", err)
	}
	target, err := decimal.NewFromString(st.Get(keyTargetPrice))
	if err != nil {
		return model.NewTrackedItem{}, fmt.Errorf("stored target price: %w", err)
	}
	return model.NewTrackedItem{
		UserID:       userID,
		Name:         st.Get(keyName),
		Link:         st.Get(keyLink),
		CurrentPrice: current,
		TargetPrice:  target,
		Currency:     st.Get(keyCurrency),
	}, nil
}

// validProductURL accepts absolute http(s) URLs with a host.
func validProductURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := u.Hostname()
	return host != "" && !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}
