package telegram

import (
	"context"
	"fmt"

	"pricetracker/internal/conversation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var _ conversation.Sender = (*Sender)(nil)

// Sender delivers conversation replies as Telegram messages.
type Sender struct {
	api    API
	logger *zap.Logger
}

// NewSender creates a new sender.
func NewSender(api API, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{api: api, logger: logger.Named("telegram")}
}

// Send posts one message to chatID.
func (s *Sender) Send(ctx context.Context, chatID int64, reply conversation.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.Send(buildMessage(chatID, reply)); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

// Edit rewrites an earlier message. Its keyboard is replaced by
// reply.Keyboard, or removed when that is empty.
func (s *Sender) Edit(ctx context.Context, chatID int64, messageID int, reply conversation.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.Send(buildEdit(chatID, messageID, reply)); err != nil {
		return fmt.Errorf("failed to edit message %d in chat %d: %w", messageID, chatID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (s *Sender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func buildMessage(chatID int64, reply conversation.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.DisableWebPagePreview = true
	if reply.RichText {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if len(reply.Keyboard) > 0 {
		msg.ReplyMarkup = buildKeyboard(reply.Keyboard)
	}
	return msg
}

func buildEdit(chatID int64, messageID int, reply conversation.Reply) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, reply.Text)
	edit.DisableWebPagePreview = true
	if reply.RichText {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if len(reply.Keyboard) > 0 {
		kb := buildKeyboard(reply.Keyboard)
		edit.ReplyMarkup = &kb
	}
	return edit
}

func buildKeyboard(rows [][]conversation.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}
