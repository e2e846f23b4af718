// Package conversation implements the bot's chat flows: a small state machine
// per user for tracking, removing and purging items, plus the one-shot
// commands. Transport adapters feed it Events and give it a Sender.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pricetracker/internal/metrics"
	"pricetracker/internal/model"
	"pricetracker/internal/repository"
	"pricetracker/internal/session"

	"go.uber.org/zap"
)

// Flow names stored in session.State.Flow.
const (
	FlowTrack  = "track"
	FlowRemove = "remove"
	FlowPurge  = "purge"
)

// Steps stored in session.State.Step.
const (
	StepAwaitingLink               = "awaiting_link"
	StepAwaitingTargetPrice        = "awaiting_target_price"
	StepAwaitingConfirmation       = "awaiting_confirmation"
	StepAwaitingItemSelection      = "awaiting_item_selection"
	StepAwaitingRepeatConfirmation = "awaiting_repeat_confirmation"
)

// Scraper is the part of the scrape gateway the track flow needs.
type Scraper interface {
	Scrape(ctx context.Context, url string) model.ScrapeResult
}

// Config holds conversation limits.
type Config struct {
	MaxItems int
}

// Dispatcher routes inbound events to the command and flow handlers.
type Dispatcher struct {
	store    repository.Store
	sessions session.Store
	scraper  Scraper
	sender   Sender
	config   Config
	logger   *zap.Logger
	locks    *userLocks
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(store repository.Store, sessions session.Store, scraper Scraper, sender Sender, config Config, logger *zap.Logger) *Dispatcher {
	if config.MaxItems <= 0 {
		config.MaxItems = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:    store,
		sessions: sessions,
		scraper:  scraper,
		sender:   sender,
		config:   config,
		logger:   logger.Named("conversation"),
		locks:    newUserLocks(),
	}
}

// Handle processes one event. Events from the same user are handled one at
// a time; Handle is safe to call from many goroutines.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	metrics.UpdatesTotal.WithLabelValues(ev.Kind.String()).Inc()

	unlock := d.locks.lock(ev.UserID)
	defer unlock()

	switch ev.Kind {
	case KindMessage:
		if ev.IsCommand() {
			d.handleCommand(ctx, ev)
			return
		}
		d.handleText(ctx, ev)
	case KindCallback:
		d.handleCallback(ctx, ev)
	default:
		d.logger.Warn("dropping event of unknown kind", zap.Int64("user_id", ev.UserID))
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev Event) {
	cmd := strings.ToLower(ev.Command)
	d.logger.Info("command received", zap.Int64("user_id", ev.UserID), zap.String("command", cmd))

	switch cmd {
	case "start", "help":
		d.guard(ctx, "start", msgStartError, ev, func() error { return d.start(ctx, ev) })
	case "list":
		d.guard(ctx, "list", msgListError, ev, func() error { return d.list(ctx, ev) })
	case "track":
		d.guard(ctx, FlowTrack, msgTrackError, ev, func() error { return d.trackEntry(ctx, ev) })
	case "cancel":
		d.guard(ctx, FlowTrack, msgTrackError, ev, func() error { return d.cancel(ctx, ev) })
	case "remove":
		d.guard(ctx, FlowRemove, msgRemoveError, ev, func() error { return d.removeEntry(ctx, ev) })
	case "purge":
		d.guard(ctx, FlowPurge, msgPurgeError, ev, func() error { return d.purgeEntry(ctx, ev) })
	default:
		d.guard(ctx, "unknown", msgGenericError, ev, func() error {
			return d.reply(ctx, ev, Reply{Text: msgUnknownCmd})
		})
	}
}

func (d *Dispatcher) handleText(ctx context.Context, ev Event) {
	st, ok := d.state(ctx, ev)
	if !ok {
		return
	}

	switch {
	case st.Flow == "":
		d.guard(ctx, "hint", msgGenericError, ev, func() error {
			return d.reply(ctx, ev, Reply{Text: msgHint})
		})
	case st.Flow == FlowTrack && st.Step == StepAwaitingLink:
		d.guard(ctx, FlowTrack, msgTrackError, ev, func() error { return d.trackLink(ctx, ev, st) })
	case st.Flow == FlowTrack && st.Step == StepAwaitingTargetPrice:
		d.guard(ctx, FlowTrack, msgTrackError, ev, func() error { return d.trackTargetPrice(ctx, ev, st) })
	default:
		// The active step waits for a button press.
		d.logger.Debug("ignoring text", zap.Int64("user_id", ev.UserID), zap.String("flow", st.Flow), zap.String("step", st.Step))
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev Event) {
	st, ok := d.state(ctx, ev)
	if !ok {
		return
	}

	switch {
	case st.Flow == FlowTrack && st.Step == StepAwaitingConfirmation:
		d.guard(ctx, FlowTrack, msgTrackError, ev, func() error { return d.trackConfirm(ctx, ev, st) })
	case st.Flow == FlowRemove && st.Step == StepAwaitingItemSelection:
		d.guard(ctx, FlowRemove, msgRemoveError, ev, func() error { return d.removeSelect(ctx, ev, st) })
	case st.Flow == FlowRemove && st.Step == StepAwaitingRepeatConfirmation:
		d.guard(ctx, FlowRemove, msgRemoveError, ev, func() error { return d.removeRepeat(ctx, ev, st) })
	case st.Flow == FlowPurge && st.Step == StepAwaitingConfirmation:
		d.guard(ctx, FlowPurge, msgPurgeError, ev, func() error { return d.purgeConfirm(ctx, ev, st) })
	default:
		d.ignoreCallback(ctx, ev, st)
	}
}

// state loads the user's conversation state. A missing state is the zero
// State; a store failure is reported to the user and ok is false.
func (d *Dispatcher) state(ctx context.Context, ev Event) (session.State, bool) {
	st, err := d.sessions.Get(ctx, ev.UserID)
	if err == nil {
		return st, true
	}
	if errors.Is(err, session.ErrNoState) {
		return session.State{}, true
	}

	d.logger.Error("failed to load conversation state", zap.Int64("user_id", ev.UserID), zap.Error(err))
	if sendErr := d.reply(ctx, ev, Reply{Text: msgGenericError}); sendErr != nil {
		d.logger.Error("failed to send error reply", zap.Int64("user_id", ev.UserID), zap.Error(sendErr))
	}
	return session.State{}, false
}

// ignoreCallback acknowledges a button press that does not belong to the
// active step so the client stops its spinner. Nothing else changes.
func (d *Dispatcher) ignoreCallback(ctx context.Context, ev Event, st session.State) {
	d.logger.Debug("ignoring callback",
		zap.Int64("user_id", ev.UserID),
		zap.String("data", ev.CallbackData),
		zap.String("flow", st.Flow),
		zap.String("step", st.Step),
	)
	if err := d.sender.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
		d.logger.Warn("failed to answer callback", zap.Int64("user_id", ev.UserID), zap.Error(err))
	}
}

// guard runs one flow step. An error or panic is logged, the user's state is
// cleared, and the flow's error message is sent. guard never fails.
func (d *Dispatcher) guard(ctx context.Context, flow, errText string, ev Event, fn func() error) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}

	metrics.FlowErrorsTotal.WithLabelValues(flow).Inc()
	d.logger.Error("error in conversation flow",
		zap.String("flow", flow),
		zap.Int64("user_id", ev.UserID),
		zap.String("event", ev.Kind.String()),
		zap.String("command", ev.Command),
		zap.String("callback_data", ev.CallbackData),
		zap.Error(err),
	)

	if clearErr := d.sessions.Clear(ctx, ev.UserID); clearErr != nil {
		d.logger.Error("failed to clear conversation state", zap.Int64("user_id", ev.UserID), zap.Error(clearErr))
	}
	if sendErr := d.reply(ctx, ev, Reply{Text: errText}); sendErr != nil {
		d.logger.Error("error in error handler", zap.Int64("user_id", ev.UserID), zap.Error(sendErr))
	}
}

// reply answers ev. A button press rewrites the message holding the keyboard
// so stale buttons disappear; if that fails a new message is sent.
func (d *Dispatcher) reply(ctx context.Context, ev Event, r Reply) error {
	if ev.Kind == KindCallback && ev.MessageID != 0 {
		err := d.sender.Edit(ctx, ev.ChatID, ev.MessageID, r)
		if err == nil {
			return nil
		}
		d.logger.Warn("failed to edit message, sending instead",
			zap.Int64("user_id", ev.UserID), zap.Int("message_id", ev.MessageID), zap.Error(err))
	}
	if err := d.sender.Send(ctx, ev.ChatID, r); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func (d *Dispatcher) answer(ctx context.Context, ev Event, text string) error {
	if err := d.sender.AnswerCallback(ctx, ev.CallbackID, text); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func (d *Dispatcher) setState(ctx context.Context, userID int64, st session.State) error {
	if err := d.sessions.Set(ctx, userID, st); err != nil {
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

func (d *Dispatcher) clearState(ctx context.Context, userID int64) error {
	if err := d.sessions.Clear(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear conversation state: %w", err)
	}
	return nil
}
