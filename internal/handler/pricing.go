package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/catalog"
)

// QuotePrice previews the full calculation for a single line without touching
// any cart: packaging, filler, optional tier discount, shipping. The
// storefront uses it for product-page price breakdowns.
func (h *Handler) QuotePrice(w http.ResponseWriter, r *http.Request) {
	req, tierName, err := decodeQuoteRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := catalog.CanonicalID(req.VariantID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	items := []cart.LineItem{{VariantID: id, CrateQty: req.CrateQty, PieceQty: req.PieceQty}}
	priced, totals, err := h.calc.Price(r.Context(), items, tierName)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range priced {
						encodePricedItem(e, &priced[i])
					}
				})
			})
			e.Field("totals", func(e *jx.Encoder) {
				encodeTotals(e, &totals)
			})
		})
	})
}

func decodeQuoteRequest(r *http.Request) (itemRequest, string, error) {
	var (
		req  itemRequest
		tier string
	)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return req, "", &cart.ValidationError{Field: "body", Reason: "unreadable request body"}
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
		case "tier":
			v, err := d.Str()
			tier = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return req, "", &cart.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return req, tier, nil
}

// CheckShipping evaluates a total weight against the shipping ceiling.
func (h *Handler) CheckShipping(w http.ResponseWriter, r *http.Request) {
	weight, err := decodeShippingRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	res := h.shipping.Validate(weight)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("allow_shipping", func(e *jx.Encoder) { e.Bool(res.AllowShipping) })
			e.Field("exceeds_limit", func(e *jx.Encoder) { e.Bool(res.ExceedsLimit) })
			e.Field("force_pickup", func(e *jx.Encoder) { e.Bool(res.ForcePickup) })
			e.Field("fee", func(e *jx.Encoder) { e.Str(res.Fee.StringFixed(2)) })
			if res.Message != "" {
				e.Field("message", func(e *jx.Encoder) { e.Str(res.Message) })
			}
		})
	})
}

func decodeShippingRequest(r *http.Request) (decimal.Decimal, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return decimal.Zero, &cart.ValidationError{Field: "body", Reason: "unreadable request body"}
	}

	var weight decimal.Decimal
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "total_weight" {
			return d.Skip()
		}
		// Accepted as either a JSON number or a decimal string.
		var raw string
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			if err != nil {
				return err
			}
			raw = v
		case jx.Number:
			n, err := d.Num()
			if err != nil {
				return err
			}
			raw = n.String()
		default:
			return errors.New("total_weight must be a number")
		}

		w, err := decimal.NewFromString(raw)
		if err != nil {
			return err
		}
		weight = w
		return nil
	}); err != nil {
		return decimal.Zero, &cart.ValidationError{Field: "total_weight", Reason: "malformed weight"}
	}

	if weight.IsNegative() {
		return decimal.Zero, &cart.ValidationError{Field: "total_weight", Reason: "must not be negative"}
	}
	return weight, nil
}
