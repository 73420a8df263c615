package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/rrstones/storefront/internal/domain/catalog"
)

// ListVariants returns the whole variant catalog.
func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := h.variants.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range variants {
				encodeVariant(e, &variants[i])
			}
		})
	})
}

// GetVariant returns a single variant. The identifier is canonicalized
// first, so legacy ObjectId-wrapped forms resolve to the same row.
func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.CanonicalID(r.PathValue("variantID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	v, err := h.variants.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "variant not found")
			return
		}
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeVariant(e, v)
	})
}

func encodeVariant(e *jx.Encoder, v *catalog.Variant) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(v.ID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(v.ProductName) })
		e.Field("size", func(e *jx.Encoder) { e.Str(v.Size) })
		e.Field("pieces_per_crate", func(e *jx.Encoder) { e.Int(v.PiecesPerCrate) })
		e.Field("unit_price", func(e *jx.Encoder) { e.Str(v.UnitPrice.StringFixed(2)) })
		e.Field("weight_per_piece", func(e *jx.Encoder) { e.Str(v.WeightPerPiece.String()) })
		e.Field("stock_pieces", func(e *jx.Encoder) { e.Int(v.StockPieces) })
	})
}
