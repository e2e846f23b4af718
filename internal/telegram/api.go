// Package telegram adapts the Telegram Bot API to the conversation package:
// updates become conversation.Events and Replies become sendMessage calls.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// API is the subset of *tgbotapi.BotAPI used to talk back to Telegram.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ API = (*tgbotapi.BotAPI)(nil)

// NewAPI authenticates with the bot token and routes the library's own
// logging through zap.
func NewAPI(token string, debug bool, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := tgbotapi.SetLogger(botLogger{logger.Named("tgbotapi").Sugar()}); err != nil {
		return nil, fmt.Errorf("failed to set telegram logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	api.Debug = debug

	logger.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	return api, nil
}

// botLogger satisfies tgbotapi.BotLogger.
type botLogger struct {
	s *zap.SugaredLogger
}

func (l botLogger) Println(v ...interface{}) {
	l.s.Debug(fmt.Sprintln(v...))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.s.Debugf(format, v...)
}
