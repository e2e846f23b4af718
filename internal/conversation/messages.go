package conversation

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"pricetracker/internal/model"

	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

// General.
const (
	msgWelcome = "Welcome to the Price Tracker Bot! 🤖\n\n" +
		"I can help you track prices of your favorite products. " +
		"Here's what you can do:\n\n" +
		"🔸 /track - Start tracking a new product\n" +
		"🔸 /list - View your tracked items\n" +
		"🔸 /remove - Remove items from tracking\n" +
		"🔸 /purge - Stop tracking everything\n" +
		"🔸 /cancel - Abandon the current step\n" +
		"🔸 /help - Show this message\n\n" +
		"Let's start tracking! Use /track to add your first item."
	msgStartError   = "Sorry, I encountered an error. Please try again with /start"
	msgHint         = "I didn't get that. Use /track to start tracking a product, or /help to see what I can do."
	msgUnknownCmd   = "Unknown command. Use /help to see what I can do."
	msgGenericError = "Sorry, something went wrong. Please try again later."
)

// List.
const (
	msgListEmpty  = "You don't have any items currently being tracked.\nGet started by using the /track command!"
	msgListHeader = "Here are your tracked items:\n\n"
	msgListError  = "Sorry, I encountered an error while fetching your items. Please try again later."
)

// Track.
const (
	msgTrackRequestLink  = "Please send the link of the product you want to track."
	msgTrackProcessing   = "Please wait while I check if this product is trackable..."
	msgTrackInvalidURL   = "Please provide a valid product URL."
	msgTrackInvalidPrice = "Please provide a valid number for the price."
	msgTrackPriceTooLow  = "Price must be greater than 0."
	msgTrackCannotTrack  = "Sorry, I cannot track this product. Please try a different link."
	msgTrackCanTrack     = "Yay!! I can track this!"
	msgTrackLimit        = "You've reached the maximum number of items you can track. Please remove some items first."
	msgTrackSuccess      = "Successfully added item to your watchlist!"
	msgTrackError        = "Sorry, something went wrong. Please try again later."
	msgTrackCancelled    = "Tracking cancelled. You can start again with /track"
)

// Remove.
const (
	msgRemoveNoItems   = "You have no items to remove."
	msgRemoveHeader    = "Choose an item to remove:\n\n"
	msgRemoveAnother   = "Item removed. Do you want to remove another item?"
	msgRemoveSuccess   = "Item removed successfully"
	msgRemoveNotFound  = "Item not found or you don't have permission"
	msgRemoveComplete  = "Removal process completed"
	msgRemoveStartOver = "You can start again using /remove."
	msgRemoveError     = "Sorry, something went wrong. Please try again."
)

// Purge.
const (
	msgPurgeConfirm = "⚠️ <b>Warning!</b>\n\n" +
		"You are about to delete <b>ALL</b> your tracked items. " +
		"This action cannot be undone.\n\n" +
		"Are you sure you want to continue?"
	msgPurgeCancelled = "Purge cancelled. Your items are safe."
	msgPurgeSuccess   = "✅ Purge completed successfully!\n\n" +
		"All your tracked items have been removed. " +
		"Use /track to start tracking new items."
	msgPurgeError = "❌ Sorry, something went wrong while purging your items.\nPlease try again later."
)

// Callback payloads. Remove selection buttons carry the bare item id.
const (
	cbTrackConfirm = "track:confirm"
	cbTrackCancel  = "track:cancel"
	cbRemoveYes    = "remove:yes"
	cbRemoveNo     = "remove:no"
	cbPurgeConfirm = "purge:confirm"
	cbPurgeCancel  = "purge:cancel"
)

const itemButtonsPerRow = 5

func link(u string) string {
	e := html.EscapeString(u)
	return `<a href="` + e + `">` + e + `</a>`
}

func formatProductDetails(name string, price decimal.Decimal, currency, url string) string {
	return fmt.Sprintf(
		"<b>Product Name:</b> %s\n\n"+
			"<b>Current Price:</b> %s\n\n"+
			"<b>Link:</b> %s\n\n"+
			"Now, please send your target price.",
		html.EscapeString(name),
		html.EscapeString(model.FormatMoney(currency, price)),
		link(url),
	)
}

func formatConfirmation(name string, current, target decimal.Decimal, currency, url string) string {
	return fmt.Sprintf(
		"<b>Product Name:</b> %s\n\n"+
			"<b>Current Price:</b> %s\n\n"+
			"<b>Target Price:</b> %s\n\n"+
			"<b>Link:</b> %s\n\n"+
			"Do you want to save this tracking item?",
		html.EscapeString(name),
		html.EscapeString(model.FormatMoney(currency, current)),
		html.EscapeString(model.FormatMoney(currency, target)),
		link(url),
	)
}

func formatList(items []model.TrackedItem) string {
	if len(items) == 0 {
		return msgListEmpty
	}

	var sb strings.Builder
	sb.WriteString(msgListHeader)
	for _, it := range items {
		fmt.Fprintf(&sb,
			"<b>Name:</b> %s\n"+
				"<b>Current Price:</b> %s\n"+
				"<b>Target Price:</b> %s\n"+
				"<b>Link:</b> %s\n"+
				"<b>Last Checked:</b> %s\n"+
				"<b>Updated:</b> %s\n\n"+
				"<i>---</i>\n\n",
			html.EscapeString(it.Name),
			html.EscapeString(model.FormatMoney(it.Currency, it.CurrentPrice)),
			html.EscapeString(model.FormatMoney(it.Currency, it.TargetPrice)),
			link(it.Link),
			it.LastCheckedAt.UTC().Format(timeLayout),
			it.UpdatedAt.UTC().Format(timeLayout),
		)
	}
	return sb.String()
}

func formatRemoveList(items []model.TrackedItem) string {
	var sb strings.Builder
	sb.WriteString(msgRemoveHeader)
	for i, it := range items {
		fmt.Fprintf(&sb,
			"<b>%d. %s</b>\n"+
				"🔗 <a href=\"%s\">Link</a>\n"+
				"💰 Current Price: %s\n"+
				"🎯 Target Price: %s\n"+
				"🕒 Last Checked: %s\n\n",
			i+1,
			html.EscapeString(it.Name),
			html.EscapeString(it.Link),
			html.EscapeString(model.FormatMoney(it.Currency, it.CurrentPrice)),
			html.EscapeString(model.FormatMoney(it.Currency, it.TargetPrice)),
			it.LastCheckedAt.UTC().Format(timeLayout),
		)
	}
	return sb.String()
}

func trackConfirmKeyboard() [][]Button {
	return [][]Button{{
		{Label: "Confirm", Data: cbTrackConfirm},
		{Label: "Cancel", Data: cbTrackCancel},
	}}
}

// itemsKeyboard labels buttons by list position and carries the item id.
func itemsKeyboard(items []model.TrackedItem) [][]Button {
	var rows [][]Button
	var row []Button
	for i, it := range items {
		row = append(row, Button{Label: strconv.Itoa(i + 1), Data: strconv.FormatInt(it.ID, 10)})
		if len(row) == itemButtonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func removeAnotherKeyboard() [][]Button {
	return [][]Button{{
		{Label: "Yes", Data: cbRemoveYes},
		{Label: "No", Data: cbRemoveNo},
	}}
}

func purgeKeyboard() [][]Button {
	return [][]Button{{
		{Label: "Yes, delete everything", Data: cbPurgeConfirm},
		{Label: "No, keep my items", Data: cbPurgeCancel},
	}}
}
