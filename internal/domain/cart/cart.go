// Package cart holds the cart aggregate: line items keyed by variant, the
// reservation lifecycle, and full recomputation of business totals on every
// change.
package cart

import "time"

// Status is the cart lifecycle state.
type Status string

const (
	// StatusActive allows item mutation.
	StatusActive Status = "active"
	// StatusReserved means checkout is in progress and items are locked.
	StatusReserved Status = "reserved"
	// StatusCheckedOut is terminal; the owning user immediately gets a fresh
	// active cart.
	StatusCheckedOut Status = "checked_out"
)

// LineItem is one cart entry: requested crate and piece quantities for a
// single variant. At least one quantity is positive for the line to exist.
type LineItem struct {
	VariantID string `json:"variant_id"`
	CrateQty  int    `json:"crate_qty"`
	PieceQty  int    `json:"piece_qty"`
}

// Cart is the persisted cart aggregate for one user. Items hold at most one
// line per variant; re-adding a variant replaces its quantities.
type Cart struct {
	ID            string
	UserID        string
	Status        Status
	Items         []LineItem
	ReservationID string
	ReservedUntil *time.Time
	UpdatedAt     time.Time
}

// New returns an empty active cart for the given user.
func New(id, userID string) *Cart {
	return &Cart{
		ID:     id,
		UserID: userID,
		Status: StatusActive,
	}
}

// findItem returns the index of the line for variantID, or -1.
func (c *Cart) findItem(variantID string) int {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// upsertItem sets the line for item.VariantID, replacing quantities when the
// variant is already present (last write wins, not additive).
func (c *Cart) upsertItem(item LineItem) {
	if i := c.findItem(item.VariantID); i >= 0 {
		c.Items[i] = item
		return
	}
	c.Items = append(c.Items, item)
}

// removeItem deletes the line for variantID. Removing an absent variant is a
// no-op.
func (c *Cart) removeItem(variantID string) {
	if i := c.findItem(variantID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

// CanModify reports whether item mutation is currently allowed. A reserved
// cart stays locked even after its reservation expires: the reservation must
// be explicitly cancelled first.
func (c *Cart) CanModify() bool {
	return c.Status == StatusActive
}

// MarkReserved transitions the cart into the reserved state. Calling it while
// already reserved refreshes the reservation (the UI may retry), replacing the
// previous timer.
func (c *Cart) MarkReserved(reservationID string, until time.Time) {
	c.Status = StatusReserved
	c.ReservationID = reservationID
	c.ReservedUntil = &until
}

// Release returns the cart to the active state, clearing any reservation.
// It is idempotent: releasing an already-active cart changes nothing.
func (c *Cart) Release() {
	c.Status = StatusActive
	c.ReservationID = ""
	c.ReservedUntil = nil
}

// IsReservationExpired reports whether a reservation exists and its deadline
// has passed. Expiry never transitions state by itself; the caller must
// Release explicitly.
func (c *Cart) IsReservationExpired(now time.Time) bool {
	return c.Status == StatusReserved &&
		c.ReservedUntil != nil &&
		!now.Before(*c.ReservedUntil)
}

// SecondsRemaining returns the countdown value for display, floored at zero.
func (c *Cart) SecondsRemaining(now time.Time) int64 {
	if c.Status != StatusReserved || c.ReservedUntil == nil {
		return 0
	}
	remaining := c.ReservedUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining / time.Second)
}
