package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pricetracker/internal/conversation"
	"pricetracker/pkg/apierror"
	"pricetracker/pkg/response"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Handler consumes converted updates.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event)
}

// Bot receives updates by long polling or webhook and hands them to the
// Handler. Each user with pending updates gets one worker goroutine that
// drains that user's queue in arrival order; different users run in parallel.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler Handler
	logger  *zap.Logger

	// base is the context handlers run under; Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// queues holds pending events per user. A key is present while the
	// user's worker is running.
	mu     sync.Mutex
	queues map[int64][]conversation.Event
}

// NewBot creates a new bot.
func NewBot(api *tgbotapi.BotAPI, handler Handler, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Bot{
		api:     api,
		handler: handler,
		logger:  logger.Named("telegram"),
		base:    base,
		cancel:  cancel,
		queues:  make(map[int64][]conversation.Event),
	}
}

// Poll long-polls getUpdates until ctx is cancelled. Any registered webhook
// is removed first since Telegram refuses getUpdates while one is set.
func (b *Bot) Poll(ctx context.Context, timeout time.Duration) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(timeout.Seconds())
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("polling for updates", zap.Duration("timeout", timeout))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("polling stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(u)
		}
	}
}

// SetWebhook registers url with Telegram. When secret is set Telegram echoes
// it in the X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (b *Bot) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)

	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.logger.Info("webhook registered", zap.String("url", url))
	return nil
}

// Webhook handles POSTed updates. It acknowledges immediately and processes
// the update in the background.
func (b *Bot) Webhook(w http.ResponseWriter, r *http.Request) {
	u, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Warn("bad webhook delivery", zap.Error(err))
		response.Error(w, apierror.BadRequest("invalid update"))
		return
	}
	b.dispatch(*u)
	response.NoContent(w)
}

func (b *Bot) dispatch(u tgbotapi.Update) {
	ev, ok := EventFromUpdate(u)
	if !ok {
		b.logger.Debug("skipping update", zap.Int("update_id", u.UpdateID))
		return
	}

	b.mu.Lock()
	q, running := b.queues[ev.UserID]
	b.queues[ev.UserID] = append(q, ev)
	if !running {
		b.wg.Add(1)
	}
	b.mu.Unlock()

	if !running {
		go b.drain(ev.UserID)
	}
}

// drain handles userID's queued events one by one and exits once the queue
// is empty.
func (b *Bot) drain(userID int64) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		q := b.queues[userID]
		if len(q) == 0 {
			delete(b.queues, userID)
			b.mu.Unlock()
			return
		}
		ev := q[0]
		q[0] = conversation.Event{}
		b.queues[userID] = q[1:]
		b.mu.Unlock()

		b.handle(ev)
	}
}

func (b *Bot) handle(ev conversation.Event) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("panic handling update", zap.Int64("user_id", ev.UserID), zap.Any("panic", p))
		}
	}()
	b.handler.Handle(b.base, ev)
}

func (b *Bot) pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues)
}

// Shutdown waits for in-flight handlers. If ctx expires first, handlers are
// cancelled and Shutdown still waits for them to return.
func (b *Bot) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}
