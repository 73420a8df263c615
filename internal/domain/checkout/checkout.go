// Package checkout drives the reservation-gated checkout flow:
// Active -> Reserved -> CheckedOut, with cancel and expiry returning the cart
// to Active.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for checkout transitions.
var (
	// ErrReservationExpired is returned when completion is attempted after
	// the reservation deadline. The caller must cancel and reserve again.
	ErrReservationExpired = errors.New("reservation expired")
	// ErrNotReserved is returned when completion or countdown is requested
	// for a cart that is not in checkout.
	ErrNotReserved = errors.New("cart is not reserved")
)

// Locker is the external inventory/reservation backend. Reserve places a
// time-boxed hold on piece counts per variant, Release frees it, Commit turns
// it into a permanent deduction and yields an order ID. Stock-insufficiency
// errors from the backend are surfaced verbatim.
type Locker interface {
	Reserve(ctx context.Context, cartID string, items map[string]int, ttl time.Duration) (time.Time, error)
	Release(ctx context.Context, cartID string) error
	Commit(ctx context.Context, cartID string) (orderID string, err error)
}

// Countdown is the display-only view of a running reservation. Crossing zero
// sets Expired but transitions nothing; releasing the lock remains an
// explicit Cancel call.
type Countdown struct {
	SecondsRemaining int64
	Expired          bool
}
