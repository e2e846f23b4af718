package telegram

import (
	"pricetracker/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EventFromUpdate converts a Telegram update. ok is false for update types
// the bot does not handle (edits, channel posts, inline queries).
func EventFromUpdate(u tgbotapi.Update) (ev conversation.Event, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.From == nil {
			return conversation.Event{}, false
		}
		ev := conversation.Event{
			UserID:       cq.From.ID,
			ChatID:       cq.From.ID,
			Kind:         conversation.KindCallback,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		}
		return ev, true

	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil {
			return conversation.Event{}, false
		}
		ev := conversation.Event{
			UserID: m.From.ID,
			ChatID: m.Chat.ID,
			Kind:   conversation.KindMessage,
			Text:   m.Text,
		}
		if m.IsCommand() {
			ev.Command = m.Command()
		}
		return ev, true
	}

	return conversation.Event{}, false
}
