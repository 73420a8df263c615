package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/domain/checkout"
	"github.com/rrstones/storefront/internal/domain/identity"
	"github.com/rrstones/storefront/internal/domain/invoice"
	"github.com/rrstones/storefront/internal/domain/pricing"
	"github.com/rrstones/storefront/internal/inventory"
)

// writeJSON encodes a response body with jx and writes it with the given
// status code.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard {code, message} error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// respondError maps domain errors onto HTTP status codes. Anything without a
// mapping is logged and reported as a plain 500 so internals never leak.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrAuthenticationRequired):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, cart.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, cart.ErrCartLocked):
		writeError(w, http.StatusConflict, "cart is locked by an active reservation")
	case errors.Is(err, checkout.ErrNotReserved):
		writeError(w, http.StatusConflict, "no active reservation")
	case errors.Is(err, checkout.ErrReservationExpired):
		writeError(w, http.StatusConflict, "reservation expired; cancel and reserve again")
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, inventory.ErrUnknownVariant):
		writeError(w, http.StatusUnprocessableEntity, "unknown variant")
	case errors.Is(err, catalog.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid variant id")
	case errors.Is(err, pricing.ErrNegativeQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, invoice.ErrNotFound):
		writeError(w, http.StatusNotFound, "invoice not found")
	default:
		var vErr *cart.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		var uErr *inventory.UnavailableError
		if errors.As(err, &uErr) {
			writeError(w, http.StatusConflict, uErr.Error())
			return
		}
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
