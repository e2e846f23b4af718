package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pricetracker/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ensure implementation satisfies interfaces
var (
	_ Store = (*SQLStore)(nil)
	_ Tx    = (*sqlTx)(nil)
)

// SQLStore implements Store on top of database/sql for every supported dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
	now     func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		db:      db,
		dialect: d,
		logger:  logger.Named("store").With(zap.String("dialect", d.name)),
		now:     time.Now,
	}
}

// Dialect returns the backend name.
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// Migrate creates the users and tracked_items tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	s.logger.Info("schema ready")
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// InTx runs fn in a transaction. A panic inside fn rolls back and re-panics.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx, d: s.dialect, now: s.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
		s.logger.Debug("transaction rolled back", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// sqlTx implements Tx against an open *sql.Tx.
type sqlTx struct {
	tx  *sql.Tx
	d   dialect
	now func() time.Time
}

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(query), args...)
}

func (t *sqlTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.d.rebind(query), args...)
}

func (t *sqlTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

// GetOrCreateUser inserts the user if missing and returns the stored row.
func (t *sqlTx) GetOrCreateUser(ctx context.Context, userID int64) (model.User, bool, error) {
	res, err := t.exec(ctx, t.d.insertUser, userID, t.now().UTC())
	if err != nil {
		return model.User{}, false, fmt.Errorf("failed to insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.User{}, false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	var u model.User
	err = t.queryRow(ctx, `SELECT id, created_at FROM users WHERE id = ?`, userID).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return model.User{}, false, fmt.Errorf("failed to get user: %w", err)
	}
	return u, n == 1, nil
}

// ListUsers returns all users ordered by id.
func (t *sqlTx) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := t.query(ctx, `SELECT id, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const itemColumns = `id, user_id, name, link, current_price, target_price, currency, created_at, updated_at, last_checked_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (model.TrackedItem, error) {
	var it model.TrackedItem
	err := s.Scan(&it.ID, &it.UserID, &it.Name, &it.Link,
		&it.CurrentPrice, &it.TargetPrice, &it.Currency,
		&it.CreatedAt, &it.UpdatedAt, &it.LastCheckedAt)
	return it, err
}

// ListByUser returns the user's items ordered by id.
func (t *sqlTx) ListByUser(ctx context.Context, userID int64) ([]model.TrackedItem, error) {
	rows, err := t.query(ctx, `SELECT `+itemColumns+` FROM tracked_items WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked items: %w", err)
	}
	defer rows.Close()

	var items []model.TrackedItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracked item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem returns the item if it exists and belongs to userID.
func (t *sqlTx) GetItem(ctx context.Context, itemID, userID int64) (model.TrackedItem, error) {
	it, err := scanItem(t.queryRow(ctx,
		`SELECT `+itemColumns+` FROM tracked_items WHERE id = ? AND user_id = ?`, itemID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TrackedItem{}, ErrNotFound
		}
		return model.TrackedItem{}, fmt.Errorf("failed to get tracked item: %w", err)
	}
	return it, nil
}

// CreateItem inserts an item, creating the owner row first if needed.
func (t *sqlTx) CreateItem(ctx context.Context, in model.NewTrackedItem) (model.TrackedItem, error) {
	if !in.TargetPrice.IsPositive() {
		return model.TrackedItem{}, fmt.Errorf("target price %s: %w", in.TargetPrice.String(), ErrInvalidPrice)
	}
	if in.CurrentPrice.IsNegative() {
		return model.TrackedItem{}, fmt.Errorf("current price %s: %w", in.CurrentPrice.String(), ErrInvalidPrice)
	}

	if _, _, err := t.GetOrCreateUser(ctx, in.UserID); err != nil {
		return model.TrackedItem{}, err
	}

	now := t.now().UTC()
	it := model.TrackedItem{
		UserID:        in.UserID,
		Name:          in.Name,
		Link:          in.Link,
		CurrentPrice:  in.CurrentPrice,
		TargetPrice:   in.TargetPrice,
		Currency:      in.Currency,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastCheckedAt: now,
	}

	query := `INSERT INTO tracked_items (user_id, name, link, current_price, target_price, currency, created_at, updated_at, last_checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{it.UserID, it.Name, it.Link, it.CurrentPrice, it.TargetPrice, it.Currency, now, now, now}

	if t.d.returning {
		if err := t.queryRow(ctx, query+` RETURNING id`, args...).Scan(&it.ID); err != nil {
			return model.TrackedItem{}, fmt.Errorf("failed to create tracked item: %w", err)
		}
		return it, nil
	}

	res, err := t.exec(ctx, query, args...)
	if err != nil {
		return model.TrackedItem{}, fmt.Errorf("failed to create tracked item: %w", err)
	}
	if it.ID, err = res.LastInsertId(); err != nil {
		return model.TrackedItem{}, fmt.Errorf("failed to read tracked item id: %w", err)
	}
	return it, nil
}

// DeleteByID deletes the item when it belongs to userID.
func (t *sqlTx) DeleteByID(ctx context.Context, itemID, userID int64) (bool, error) {
	res, err := t.exec(ctx, `DELETE FROM tracked_items WHERE id = ? AND user_id = ?`, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tracked item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteAllByUser deletes every item the user owns.
func (t *sqlTx) DeleteAllByUser(ctx context.Context, userID int64) (int64, error) {
	res, err := t.exec(ctx, `DELETE FROM tracked_items WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tracked items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// CountForUser counts the user's items.
func (t *sqlTx) CountForUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := t.queryRow(ctx, `SELECT COUNT(*) FROM tracked_items WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracked items: %w", err)
	}
	return n, nil
}

// UpdatePrice stores a new current price and bumps both timestamps.
func (t *sqlTx) UpdatePrice(ctx context.Context, itemID int64, price decimal.Decimal, at time.Time) error {
	if price.IsNegative() {
		return fmt.Errorf("price %s: %w", price.String(), ErrInvalidPrice)
	}
	at, err := t.checkTime(ctx, itemID, at)
	if err != nil {
		return err
	}
	_, err = t.exec(ctx, `UPDATE tracked_items SET current_price = ?, updated_at = ?, last_checked_at = ? WHERE id = ?`,
		price, at, at, itemID)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", err)
	}
	return nil
}

// MarkChecked only moves last_checked_at.
func (t *sqlTx) MarkChecked(ctx context.Context, itemID int64, at time.Time) error {
	at, err := t.checkTime(ctx, itemID, at)
	if err != nil {
		return err
	}
	if _, err := t.exec(ctx, `UPDATE tracked_items SET last_checked_at = ? WHERE id = ?`, at, itemID); err != nil {
		return fmt.Errorf("failed to mark item checked: %w", err)
	}
	return nil
}

// checkTime returns the later of at and the stored last_checked_at so the
// check timestamp never moves backwards.
func (t *sqlTx) checkTime(ctx context.Context, itemID int64, at time.Time) (time.Time, error) {
	var last time.Time
	err := t.queryRow(ctx, `SELECT last_checked_at FROM tracked_items WHERE id = ?`, itemID).Scan(&last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to read last check: %w", err)
	}
	at = at.UTC()
	if at.Before(last) {
		return last.UTC(), nil
	}
	return at, nil
}
