package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/rrstones/storefront/internal/domain/cart"
)

// Reserve starts checkout: prices the cart, places an inventory hold, and
// locks the cart for the reservation window. Repeating the call refreshes
// the window.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	timeout, err := decodeReserveRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.checkout.Reserve(r.Context(), timeout)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// decodeReserveRequest reads the optional {"timeout_seconds": N} body. An
// empty body means the server default.
func decodeReserveRequest(r *http.Request) (time.Duration, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return 0, &cart.ValidationError{Field: "body", Reason: "unreadable request body"}
	}
	if len(data) == 0 {
		return 0, nil
	}

	var seconds int
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "timeout_seconds" {
			return d.Skip()
		}
		v, err := d.Int()
		seconds = v
		return err
	}); err != nil {
		return 0, &cart.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	if seconds < 0 {
		return 0, &cart.ValidationError{Field: "timeout_seconds", Reason: "must not be negative"}
	}
	return time.Duration(seconds) * time.Second, nil
}

// CancelCheckout releases the reservation and unlocks the cart. Cancelling
// with nothing reserved succeeds.
func (h *Handler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Cancel(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.carts.Get(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// CompleteCheckout finalizes a live reservation into an order and returns
// the materialized invoice.
func (h *Handler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	inv, err := h.checkout.Complete(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Str(inv.OrderID) })
			e.Field("invoice_number", func(e *jx.Encoder) { e.Str(inv.Number) })
			e.Field("total_due", func(e *jx.Encoder) { e.Str(inv.Totals.TotalDue.StringFixed(2)) })
			e.Field("due_date", func(e *jx.Encoder) {
				e.Str(inv.DueDate.UTC().Format(time.RFC3339))
			})
		})
	})
}

// Countdown reports the remaining reservation time for UI display.
func (h *Handler) Countdown(w http.ResponseWriter, r *http.Request) {
	cd, err := h.checkout.Countdown(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("seconds_remaining", func(e *jx.Encoder) { e.Int64(cd.SecondsRemaining) })
			e.Field("expired", func(e *jx.Encoder) { e.Bool(cd.Expired) })
		})
	})
}
