package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rrstones/storefront/internal/domain/cart"
)

const (
	loadCartSQL = `SELECT id, user_id, status, items, reservation_id, reserved_until, updated_at
		FROM carts WHERE user_id = $1`

	saveCartSQL = `INSERT INTO carts (id, user_id, status, items, reservation_id, reserved_until, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			status = EXCLUDED.status,
			items = EXCLUDED.items,
			reservation_id = EXCLUDED.reservation_id,
			reserved_until = EXCLUDED.reserved_until,
			updated_at = EXCLUDED.updated_at`

	deleteCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL. One row per user;
// line items live in a JSONB column since they are always read and written
// as a whole.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Load returns the cart for userID, or cart.ErrNotFound when the user has
// never saved one.
func (s *CartStore) Load(ctx context.Context, userID string) (*cart.Cart, error) {
	var (
		c             cart.Cart
		itemsJSON     []byte
		reservedUntil *time.Time
	)
	err := s.pool.QueryRow(ctx, loadCartSQL, userID).Scan(
		&c.ID, &c.UserID, &c.Status, &itemsJSON,
		&c.ReservationID, &reservedUntil, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}

	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items for user %q: %w", userID, err)
	}
	c.ReservedUntil = reservedUntil
	return &c, nil
}

// Save upserts the cart row for its user.
func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	_, err = s.pool.Exec(ctx, saveCartSQL,
		c.ID, c.UserID, c.Status, itemsJSON,
		c.ReservationID, c.ReservedUntil, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving cart for user %q: %w", c.UserID, err)
	}
	return nil
}

// Delete removes the cart row for userID. Deleting an absent row is a no-op.
func (s *CartStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, deleteCartSQL, userID); err != nil {
		return fmt.Errorf("deleting cart for user %q: %w", userID, err)
	}
	return nil
}
