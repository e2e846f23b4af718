package telegram

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pricetracker/internal/conversation"
	"pricetracker/internal/model"
	"pricetracker/internal/repository"
	"pricetracker/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticScraper struct{}

func (staticScraper) Scrape(ctx context.Context, url string) model.ScrapeResult {
	return model.Trackable("Widget", decimal.RequireFromString("25.00"), "$")
}

func TestBot_TrackThenLinkLandsOnTargetPrice(t *testing.T) {
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "bot.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	sessions := session.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = sessions.Close() })

	sender := NewSender(&fakeAPI{}, nil)
	d := conversation.NewDispatcher(store, sessions, staticScraper{}, sender, conversation.Config{MaxItems: 5}, nil)
	bot := NewBot(&tgbotapi.BotAPI{}, d, nil)

	const users = 100
	for id := int64(1); id <= users; id++ {
		bot.dispatch(userMessage(id, "/track"))
		bot.dispatch(userMessage(id, "https://shop.example/widget"))
	}
	require.NoError(t, bot.Shutdown(context.Background()))

	for id := int64(1); id <= users; id++ {
		st, err := sessions.Get(context.Background(), id)
		require.NoError(t, err, "user %d", id)
		assert.Equal(t, conversation.FlowTrack, st.Flow, "user %d", id)
		assert.Equal(t, conversation.StepAwaitingTargetPrice, st.Step, "user %d", id)
	}
}
