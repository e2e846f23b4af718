package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pricetracker/internal/conversation"
	"pricetracker/internal/model"
	"pricetracker/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeScraper answers from a table keyed by URL; unknown URLs are not trackable.
type fakeScraper struct {
	mu      sync.Mutex
	results map[string]model.ScrapeResult
	panics  map[string]bool
	calls   int32
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{results: map[string]model.ScrapeResult{}, panics: map[string]bool{}}
}

func (f *fakeScraper) set(url string, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = model.Trackable("Widget", decimal.RequireFromString(price), "$")
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) model.ScrapeResult {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics[url] {
		panic("scraper exploded")
	}
	if r, ok := f.results[url]; ok {
		return r
	}
	return model.NotTrackable()
}

type sentMessage struct {
	chatID int64
	reply  conversation.Reply
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, chatID int64, reply conversation.Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, reply: reply})
	return nil
}

func (f *fakeSender) Edit(ctx context.Context, chatID int64, messageID int, reply conversation.Reply) error {
	return errors.New("alerts never edit")
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	s, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "reconcile.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func addItem(t *testing.T, s repository.Store, userID int64, link, current, target string) model.TrackedItem {
	t.Helper()
	var item model.TrackedItem
	require.NoError(t, s.InTx(context.Background(), func(tx repository.Tx) error {
		var err error
		item, err = tx.CreateItem(context.Background(), model.NewTrackedItem{
			UserID:       userID,
			Name:         "Widget",
			Link:         link,
			CurrentPrice: decimal.RequireFromString(current),
			TargetPrice:  decimal.RequireFromString(target),
			Currency:     "$",
		})
		return err
	}))
	return item
}

func getItem(t *testing.T, s repository.Store, itemID, userID int64) model.TrackedItem {
	t.Helper()
	var item model.TrackedItem
	require.NoError(t, s.InTx(context.Background(), func(tx repository.Tx) error {
		var err error
		item, err = tx.GetItem(context.Background(), itemID, userID)
		return err
	}))
	return item
}

func newReconciler(store repository.Store, scraper PriceScraper, sender conversation.Sender) *Reconciler {
	r := NewReconciler(store, scraper, NewAlertDispatcher(sender, nil), ReconcilerConfig{}, nil)
	later := time.Now().Add(time.Hour)
	r.now = func() time.Time { return later }
	return r
}

func TestRunPass_PriceBelowTarget(t *testing.T) {
	store := newStore(t)
	scraper := newFakeScraper()
	sender := &fakeSender{}

	item := addItem(t, store, 1, "https://shop.example/a", "120", "100")
	scraper.set(item.Link, "90")

	r := newReconciler(store, scraper, sender)
	stats, err := r.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PassStats{Users: 1, Items: 1, Updated: 1, Alerts: 1}, stats)

	got := getItem(t, store, item.ID, 1)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(90)))
	assert.True(t, got.UpdatedAt.After(item.UpdatedAt))
	assert.True(t, got.LastCheckedAt.After(item.LastCheckedAt))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].chatID)
	assert.True(t, msgs[0].reply.RichText)
}

func TestRunPass_PriceAtOrAboveTarget(t *testing.T) {
	store := newStore(t)
	scraper := newFakeScraper()
	sender := &fakeSender{}

	// Stored current is below target, fresh price is above: still no alert.
	above := addItem(t, store, 1, "https://shop.example/above", "80", "100")
	scraper.set(above.Link, "150")
	equal := addItem(t, store, 1, "https://shop.example/equal", "120", "100")
	scraper.set(equal.Link, "100")

	r := newReconciler(store, scraper, sender)
	stats, err := r.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassStats{Users: 1, Items: 2}, stats)

	for _, it := range []model.TrackedItem{above, equal} {
		got := getItem(t, store, it.ID, 1)
		assert.True(t, got.CurrentPrice.Equal(it.CurrentPrice), "current price unchanged")
		assert.True(t, got.UpdatedAt.Equal(it.UpdatedAt), "updated_at unchanged")
		assert.True(t, got.LastCheckedAt.After(it.LastCheckedAt), "last_checked_at advanced")
	}
	assert.Empty(t, sender.messages())
}

func TestRunPass_NotTrackableSkipped(t *testing.T) {
	store := newStore(t)
	scraper := newFakeScraper()
	sender := &fakeSender{}

	item := addItem(t, store, 1, "https://shop.example/gone", "50", "40")

	r := newReconciler(store, scraper, sender)
	stats, err := r.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassStats{Users: 1, Items: 1, Skipped: 1}, stats)

	got := getItem(t, store, item.ID, 1)
	assert.True(t, got.LastCheckedAt.Equal(item.LastCheckedAt))
	assert.True(t, got.UpdatedAt.Equal(item.UpdatedAt))
	assert.True(t, got.CurrentPrice.Equal(item.CurrentPrice))
	assert.Empty(t, sender.messages())
}

func TestRunPass_ItemFailuresAreIsolated(t *testing.T) {
	store := newStore(t)
	scraper := newFakeScraper()
	sender := &fakeSender{err: errors.New("bot was blocked by the user")}

	bad := addItem(t, store, 1, "https://shop.example/bad", "50", "40")
	scraper.mu.Lock()
	scraper.panics[bad.Link] = true
	scraper.mu.Unlock()

	good := addItem(t, store, 1, "https://shop.example/good", "50", "40")
	scraper.set(good.Link, "30")
	other := addItem(t, store, 2, "https://shop.example/other", "50", "40")
	scraper.set(other.Link, "35")

	r := newReconciler(store, scraper, sender)
	stats, err := r.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 3, stats.Items)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Updated)
	// Send failures are swallowed; the price update stays committed.
	assert.True(t, getItem(t, store, good.ID, 1).CurrentPrice.Equal(decimal.NewFromInt(30)))
	assert.True(t, getItem(t, store, other.ID, 2).CurrentPrice.Equal(decimal.NewFromInt(35)))
}

func TestRunPass_WidgetAlert(t *testing.T) {
	store := newStore(t)
	scraper := newFakeScraper()
	sender := &fakeSender{}

	item := addItem(t, store, 42, "https://shop.example/widget", "25.0", "20")
	scraper.set(item.Link, "18.0")

	r := newReconciler(store, scraper, sender)
	_, err := r.RunPass(context.Background())
	require.NoError(t, err)

	got := getItem(t, store, item.ID, 42)
	assert.True(t, got.CurrentPrice.Equal(decimal.RequireFromString("18.0")))

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].chatID)
	assert.Contains(t, msgs[0].reply.Text, "Widget")
	assert.Contains(t, msgs[0].reply.Text, "18.0")
	assert.Contains(t, msgs[0].reply.Text, "20")
	assert.Contains(t, msgs[0].reply.Text, "https://shop.example/widget")
}

// failingStore fails or panics every unit of work.
type failingStore struct {
	repository.Store
	calls int32
	panic bool
}

func (f *failingStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	atomic.AddInt32(&f.calls, 1)
	if f.panic {
		panic("connection pool corrupted")
	}
	return errors.New("database is locked")
}

func TestRunNow_RecoversPanic(t *testing.T) {
	r := NewReconciler(&failingStore{panic: true}, newFakeScraper(), NewAlertDispatcher(&fakeSender{}, nil), ReconcilerConfig{}, nil)
	_, err := r.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestRun_CooldownAfterFailedPass(t *testing.T) {
	store := &failingStore{}
	r := NewReconciler(store, newFakeScraper(), NewAlertDispatcher(&fakeSender{}, nil),
		ReconcilerConfig{Interval: 5 * time.Millisecond, ErrorCooldown: time.Hour}, nil)

	r.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&store.calls) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))
}

func TestRun_RepeatsPasses(t *testing.T) {
	store := newStore(t)
	scraper := newFakeScraper()
	addItem(t, store, 1, "https://shop.example/a", "10", "5")

	r := NewReconciler(store, scraper, NewAlertDispatcher(&fakeSender{}, nil),
		ReconcilerConfig{Interval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&scraper.calls) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// Stop on a reconciler that was never started is a no-op.
	r.Stop()
}
