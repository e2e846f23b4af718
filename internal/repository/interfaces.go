package repository

import (
	"context"
	"errors"
	"time"

	"pricetracker/internal/model"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPrice is returned when a tracked item is created with an unusable price.
	ErrInvalidPrice = errors.New("invalid price")
)

// Store opens units of work against the tracked-item database.
type Store interface {
	// InTx runs fn inside one transaction. It commits when fn returns nil and
	// rolls back otherwise; the error from fn is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying connection pool.
	Close() error
}

// Tx is the set of operations available inside one unit of work.
type Tx interface {
	UserRepository
	TrackedItemRepository
}

// UserRepository defines user data access methods.
type UserRepository interface {
	// GetOrCreateUser returns the user, creating it first if needed.
	// created is true only for the call that inserted the row.
	GetOrCreateUser(ctx context.Context, userID int64) (user model.User, created bool, err error)

	// ListUsers returns every user ordered by id.
	ListUsers(ctx context.Context) ([]model.User, error)
}

// TrackedItemRepository defines tracked item data access methods. Every
// user-facing method is scoped to the owning user.
type TrackedItemRepository interface {
	// ListByUser returns the user's items in insertion order.
	ListByUser(ctx context.Context, userID int64) ([]model.TrackedItem, error)

	// GetItem returns one item owned by userID, or ErrNotFound.
	GetItem(ctx context.Context, itemID, userID int64) (model.TrackedItem, error)

	// CreateItem inserts a new item. It does not check the per-user limit.
	CreateItem(ctx context.Context, item model.NewTrackedItem) (model.TrackedItem, error)

	// DeleteByID removes the item only if it belongs to userID.
	DeleteByID(ctx context.Context, itemID, userID int64) (bool, error)

	// DeleteAllByUser removes all of the user's items and returns how many were removed.
	DeleteAllByUser(ctx context.Context, userID int64) (int64, error)

	// CountForUser returns how many items the user tracks.
	CountForUser(ctx context.Context, userID int64) (int, error)

	// UpdatePrice records a new current price observed at the given time.
	UpdatePrice(ctx context.Context, itemID int64, price decimal.Decimal, at time.Time) error

	// MarkChecked records a price check that did not change the price.
	MarkChecked(ctx context.Context, itemID int64, at time.Time) error
}

// HasCapacity reports whether a user holding count items may add another one.
func HasCapacity(count, limit int) bool {
	return count < limit
}
