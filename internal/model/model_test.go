package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBelowTarget(t *testing.T) {
	item := TrackedItem{TargetPrice: decimal.NewFromInt(100)}

	assert.True(t, item.BelowTarget(decimal.NewFromInt(90)))
	assert.True(t, item.BelowTarget(decimal.RequireFromString("99.99")))
	assert.False(t, item.BelowTarget(decimal.NewFromInt(100)), "equal is not below")
	assert.False(t, item.BelowTarget(decimal.NewFromInt(150)))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$ 18.00", FormatMoney("$", decimal.RequireFromString("18.0")))
	assert.Equal(t, "€ 1299.50", FormatMoney("€", decimal.RequireFromString("1299.5")))
	assert.Equal(t, "£ 0.13", FormatMoney("£", decimal.RequireFromString("0.125")))
}

func TestScrapeResult_Complete(t *testing.T) {
	empty := ""
	tests := []struct {
		name string
		res  ScrapeResult
		want bool
	}{
		{"trackable", Trackable("Widget", decimal.NewFromInt(25), "$"), true},
		{"free item", Trackable("Sample", decimal.Zero, "$"), true},
		{"not trackable", NotTrackable(), false},
		{"negative price", Trackable("Widget", decimal.NewFromInt(-1), "$"), false},
		{"missing name", ScrapeResult{IsTrackable: true, ProductName: &empty, Price: &decimal.Zero, Currency: &empty}, false},
		{"flag without fields", ScrapeResult{IsTrackable: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.Complete())
		})
	}
}
