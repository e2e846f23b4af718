package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pricetracker/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func command(text string) *tgbotapi.Message {
	n := len(strings.Fields(text)[0])
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 70},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}
}

func TestEventFromUpdate(t *testing.T) {
	tests := []struct {
		name   string
		update tgbotapi.Update
		want   conversation.Event
		ok     bool
	}{
		{
			name: "plain text",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: &tgbotapi.User{ID: 7},
				Chat: &tgbotapi.Chat{ID: 70},
				Text: "https://shop.example/widget",
			}},
			want: conversation.Event{UserID: 7, ChatID: 70, Kind: conversation.KindMessage, Text: "https://shop.example/widget"},
			ok:   true,
		},
		{
			name:   "command",
			update: tgbotapi.Update{Message: command("/track")},
			want:   conversation.Event{UserID: 7, ChatID: 70, Kind: conversation.KindMessage, Text: "/track", Command: "track"},
			ok:     true,
		},
		{
			name:   "command addressed to bot",
			update: tgbotapi.Update{Message: command("/list@price_bot")},
			want:   conversation.Event{UserID: 7, ChatID: 70, Kind: conversation.KindMessage, Text: "/list@price_bot", Command: "list"},
			ok:     true,
		},
		{
			name: "callback",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID:      "cb1",
				From:    &tgbotapi.User{ID: 7},
				Message: &tgbotapi.Message{MessageID: 33, Chat: &tgbotapi.Chat{ID: 70}},
				Data:    "track:confirm",
			}},
			want: conversation.Event{UserID: 7, ChatID: 70, Kind: conversation.KindCallback, CallbackID: "cb1", CallbackData: "track:confirm", MessageID: 33},
			ok:   true,
		},
		{
			name: "callback without message falls back to user chat",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID:   "cb2",
				From: &tgbotapi.User{ID: 7},
				Data: "12",
			}},
			want: conversation.Event{UserID: 7, ChatID: 7, Kind: conversation.KindCallback, CallbackID: "cb2", CallbackData: "12"},
			ok:   true,
		},
		{
			name:   "edited message is skipped",
			update: tgbotapi.Update{EditedMessage: &tgbotapi.Message{Text: "x"}},
		},
		{
			name:   "message without sender is skipped",
			update: tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EventFromUpdate(tt.update)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage(70, conversation.Reply{
		Text:     "<b>hi</b>",
		RichText: true,
		Keyboard: [][]conversation.Button{
			{{Label: "1", Data: "10"}, {Label: "2", Data: "11"}},
			{{Label: "3", Data: "12"}},
		},
	})

	assert.Equal(t, int64(70), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.True(t, msg.DisableWebPagePreview)

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "2", kb.InlineKeyboard[0][1].Text)
	require.NotNil(t, kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "12", *kb.InlineKeyboard[1][0].CallbackData)

	plain := buildMessage(70, conversation.Reply{Text: "hi"})
	assert.Empty(t, plain.ParseMode)
	assert.Nil(t, plain.ReplyMarkup)
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []tgbotapi.Chattable
	err   error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return tgbotapi.Message{}, f.err
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return &tgbotapi.APIResponse{Ok: f.err == nil}, f.err
}

func TestSender(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, nil)
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, 70, conversation.Reply{Text: "hello"}))
	require.NoError(t, s.AnswerCallback(ctx, "cb1", "Item removed successfully"))
	require.NoError(t, s.Edit(ctx, 70, 33, conversation.Reply{
		Text:     "Do you want to remove another item?",
		Keyboard: [][]conversation.Button{{{Label: "Yes", Data: "remove:yes"}}},
	}))
	require.NoError(t, s.Edit(ctx, 70, 34, conversation.Reply{Text: "<b>done</b>", RichText: true}))

	require.Len(t, api.calls, 4)
	msg, ok := api.calls[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Text)

	cb, ok := api.calls[1].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb1", cb.CallbackQueryID)
	assert.Equal(t, "Item removed successfully", cb.Text)

	edit, ok := api.calls[2].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, int64(70), edit.ChatID)
	assert.Equal(t, 33, edit.MessageID)
	assert.Empty(t, edit.ParseMode)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "Yes", edit.ReplyMarkup.InlineKeyboard[0][0].Text)

	edit, ok = api.calls[3].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ModeHTML, edit.ParseMode)
	assert.Nil(t, edit.ReplyMarkup, "keyboard removed")
}

func TestSender_Errors(t *testing.T) {
	api := &fakeAPI{err: errors.New("Forbidden: bot was blocked by the user")}
	s := NewSender(api, nil)

	err := s.Send(context.Background(), 70, conversation.Reply{Text: "hello"})
	assert.ErrorContains(t, err, "blocked")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, 70, conversation.Reply{Text: "late"}), context.Canceled)
	assert.Len(t, api.calls, 1)
}

type recordingHandler struct {
	events chan conversation.Event
	block  chan struct{}
}

func (h *recordingHandler) Handle(ctx context.Context, ev conversation.Event) {
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
		}
	}
	h.events <- ev
}

func TestWebhook(t *testing.T) {
	h := &recordingHandler{events: make(chan conversation.Event, 1)}
	bot := NewBot(&tgbotapi.BotAPI{}, h, nil)

	body := `{"update_id":1,"message":{"message_id":5,"from":{"id":7},"chat":{"id":70,"type":"private"},"text":"hello"}}`
	rec := httptest.NewRecorder()
	bot.Webhook(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	select {
	case ev := <-h.events:
		assert.Equal(t, int64(7), ev.UserID)
		assert.Equal(t, int64(70), ev.ChatID)
		assert.Equal(t, "hello", ev.Text)
	case <-time.After(time.Second):
		t.Fatal("update was not dispatched")
	}

	require.NoError(t, bot.Shutdown(context.Background()))
}

func TestWebhook_BadRequest(t *testing.T) {
	h := &recordingHandler{events: make(chan conversation.Event, 1)}
	bot := NewBot(&tgbotapi.BotAPI{}, h, nil)

	rec := httptest.NewRecorder()
	bot.Webhook(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	bot.Webhook(rec, httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, bot.Shutdown(context.Background()))
	assert.Empty(t, h.events)
}

func TestShutdown_CancelsSlowHandlers(t *testing.T) {
	h := &recordingHandler{events: make(chan conversation.Event, 1), block: make(chan struct{})}
	bot := NewBot(&tgbotapi.BotAPI{}, h, nil)

	bot.dispatch(tgbotapi.Update{Message: command("/track")})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bot.Shutdown(ctx), context.DeadlineExceeded)

	// The handler saw its context cancelled and returned.
	ev := <-h.events
	assert.Equal(t, "track", ev.Command)
}

type orderHandler struct {
	mu   sync.Mutex
	seen map[int64][]string
}

func (h *orderHandler) Handle(ctx context.Context, ev conversation.Event) {
	// Yield so workers for different users interleave.
	time.Sleep(time.Duration(ev.UserID%3) * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[ev.UserID] = append(h.seen[ev.UserID], ev.Text)
}

func userMessage(userID int64, text string) tgbotapi.Update {
	m := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: m}
}

func TestDispatch_KeepsPerUserOrder(t *testing.T) {
	h := &orderHandler{seen: make(map[int64][]string)}
	bot := NewBot(&tgbotapi.BotAPI{}, h, nil)

	const users = 300
	for id := int64(1); id <= users; id++ {
		bot.dispatch(userMessage(id, "/track"))
		bot.dispatch(userMessage(id, "https://shop.example/widget"))
		bot.dispatch(userMessage(id, "20"))
	}
	require.NoError(t, bot.Shutdown(context.Background()))

	require.Len(t, h.seen, users)
	for id, texts := range h.seen {
		assert.Equal(t, []string{"/track", "https://shop.example/widget", "20"}, texts, "user %d", id)
	}
	assert.Zero(t, bot.pending())
}

func TestDispatch_PanicDoesNotStopQueue(t *testing.T) {
	h := &recordingHandler{events: make(chan conversation.Event, 2)}
	bot := NewBot(&tgbotapi.BotAPI{}, panicOnce{next: h}, nil)

	bot.dispatch(userMessage(7, "boom"))
	bot.dispatch(userMessage(7, "after"))
	require.NoError(t, bot.Shutdown(context.Background()))

	require.Len(t, h.events, 1)
	assert.Equal(t, "after", (<-h.events).Text)
}

type panicOnce struct {
	next Handler
}

func (p panicOnce) Handle(ctx context.Context, ev conversation.Event) {
	if ev.Text == "boom" {
		panic("handler bug")
	}
	p.next.Handle(ctx, ev)
}
