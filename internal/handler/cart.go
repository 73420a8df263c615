package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/catalog"
)

// itemRequest is the body of cart item mutations.
type itemRequest struct {
	VariantID string
	CrateQty  int
	PieceQty  int
}

func decodeItemRequest(r *http.Request) (itemRequest, error) {
	var req itemRequest

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return req, &cart.ValidationError{Field: "body", Reason: "unreadable request body"}
	}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "variant_id":
			v, err := d.Str()
			req.VariantID = v
			return err
		case "crate_qty":
			v, err := d.Int()
			req.CrateQty = v
			return err
		case "piece_qty":
			v, err := d.Int()
			req.PieceQty = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return req, &cart.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return req, nil
}

// GetCart returns the current cart view with fresh totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Get(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// AddCartItem upserts a line: adding an already-present variant replaces its
// quantities.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeItemRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := catalog.CanonicalID(req.VariantID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.carts.AddItem(r.Context(), id, req.CrateQty, req.PieceQty)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// UpdateCartItem changes quantities of an existing line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeItemRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := catalog.CanonicalID(r.PathValue("variantID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.carts.UpdateItem(r.Context(), id, req.CrateQty, req.PieceQty)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// RemoveCartItem deletes a line. Removing an absent variant succeeds.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.CanonicalID(r.PathValue("variantID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := h.carts.RemoveItem(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// ClearCart removes every line.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Clear(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, view)
}

func writeView(w http.ResponseWriter, status int, view *cart.View) {
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeView(e, view)
	})
}

func encodeView(e *jx.Encoder, view *cart.View) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("cart", func(e *jx.Encoder) {
			if view.Cart == nil {
				e.Null()
				return
			}
			encodeCartMeta(e, view.Cart)
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range view.Items {
					encodePricedItem(e, &view.Items[i])
				}
			})
		})
		e.Field("totals", func(e *jx.Encoder) {
			encodeTotals(e, &view.Totals)
		})
	})
}

func encodeCartMeta(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(c.Status)) })
		if c.ReservationID != "" {
			e.Field("reservation_id", func(e *jx.Encoder) { e.Str(c.ReservationID) })
		}
		if c.ReservedUntil != nil {
			e.Field("reserved_until", func(e *jx.Encoder) {
				e.Str(c.ReservedUntil.UTC().Format(time.RFC3339))
			})
		}
	})
}

func encodePricedItem(e *jx.Encoder, item *cart.PricedItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("variant_id", func(e *jx.Encoder) { e.Str(item.VariantID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(item.Variant.ProductName) })
		e.Field("size", func(e *jx.Encoder) { e.Str(item.Variant.Size) })
		e.Field("crate_qty", func(e *jx.Encoder) { e.Int(item.CrateQty) })
		e.Field("piece_qty", func(e *jx.Encoder) { e.Int(item.PieceQty) })
		e.Field("total_pieces", func(e *jx.Encoder) { e.Int(item.Quote.TotalPieces) })
		e.Field("total_crates", func(e *jx.Encoder) { e.Int(item.Quote.TotalCrates) })
		e.Field("filler_pieces", func(e *jx.Encoder) { e.Int(item.Quote.FillerPieces) })
		e.Field("unit_price", func(e *jx.Encoder) { e.Str(item.Variant.UnitPrice.StringFixed(2)) })
		e.Field("filler_charges", func(e *jx.Encoder) { e.Str(item.Quote.FillerCharges.StringFixed(2)) })
		e.Field("weight", func(e *jx.Encoder) { e.Str(item.Quote.Weight.String()) })
		e.Field("line_total", func(e *jx.Encoder) { e.Str(item.LineTotal.StringFixed(2)) })
	})
}

func encodeTotals(e *jx.Encoder, t *cart.Totals) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(t.Subtotal.StringFixed(2)) })
		e.Field("discount_percent", func(e *jx.Encoder) { e.Str(t.DiscountPercent.String()) })
		e.Field("discount_amount", func(e *jx.Encoder) { e.Str(t.DiscountAmount.StringFixed(2)) })
		e.Field("filler_charges", func(e *jx.Encoder) { e.Str(t.FillerCharges.StringFixed(2)) })
		e.Field("total_weight", func(e *jx.Encoder) { e.Str(t.TotalWeight.String()) })
		e.Field("shipping_fee", func(e *jx.Encoder) { e.Str(t.ShippingFee.StringFixed(2)) })
		e.Field("final_total", func(e *jx.Encoder) { e.Str(t.FinalTotal.StringFixed(2)) })
		e.Field("shipping", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("allow_shipping", func(e *jx.Encoder) { e.Bool(t.Shipping.AllowShipping) })
				e.Field("exceeds_limit", func(e *jx.Encoder) { e.Bool(t.Shipping.ExceedsLimit) })
				e.Field("force_pickup", func(e *jx.Encoder) { e.Bool(t.Shipping.ForcePickup) })
				e.Field("fee", func(e *jx.Encoder) { e.Str(t.Shipping.Fee.StringFixed(2)) })
				if t.Shipping.Message != "" {
					e.Field("message", func(e *jx.Encoder) { e.Str(t.Shipping.Message) })
				}
			})
		})
	})
}
