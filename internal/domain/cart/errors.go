package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for cart operations.
var (
	// ErrNotFound is returned by a Store when the user has no persisted cart.
	ErrNotFound = errors.New("cart not found")
	// ErrCartLocked is returned for mutations attempted while the cart is
	// reserved. The caller must cancel checkout first.
	ErrCartLocked = errors.New("cart is reserved for checkout; cancel checkout first")
	// ErrEmptyCart is returned when checkout is started on a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
)

// ValidationError indicates malformed input for a single field. It is
// recovered locally and surfaced as a field-level message, never fatal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
