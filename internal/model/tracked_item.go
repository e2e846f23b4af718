package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedItem represents a product page a user watches for a price drop.
type TrackedItem struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Name          string          `json:"name"`
	Link          string          `json:"link"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	LastCheckedAt time.Time       `json:"last_checked_at"`
}

// BelowTarget reports whether price is strictly under the item's alert threshold.
func (t *TrackedItem) BelowTarget(price decimal.Decimal) bool {
	return price.LessThan(t.TargetPrice)
}

// NewTrackedItem holds the fields captured by a finished track conversation.
type NewTrackedItem struct {
	UserID       int64
	Name         string
	Link         string
	CurrentPrice decimal.Decimal
	TargetPrice  decimal.Decimal
	Currency     string
}

// FormatMoney renders an amount with its currency symbol and two decimals.
func FormatMoney(currency string, amount decimal.Decimal) string {
	return currency + " " + amount.StringFixed(2)
}
