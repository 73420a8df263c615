package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/domain/pricing"
	"github.com/rrstones/storefront/internal/domain/shipping"
	"github.com/rrstones/storefront/internal/domain/tier"
)

// PricedItem is a cart line joined with its catalog variant and computed
// packaging quote.
type PricedItem struct {
	LineItem
	Variant catalog.Variant
	Quote   pricing.Quote
	// LineTotal is the line subtotal plus its filler charges.
	LineTotal decimal.Decimal
}

// Totals is the fully recomputed business calculation for a cart. It is
// derived state: thrown away and rebuilt on every item change so it can never
// drift from the items.
type Totals struct {
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	FillerCharges   decimal.Decimal
	TotalWeight     decimal.Decimal
	ShippingFee     decimal.Decimal
	FinalTotal      decimal.Decimal
	Shipping        shipping.Result
}

// Calculator recomputes cart totals from scratch: per-line packaging via the
// pricing calculator, then tier discount, then shipping validation over the
// aggregate weight. Carts are small (tens of lines), so there is no
// incremental caching.
type Calculator struct {
	variants   catalog.Repository
	tiers      *tier.Resolver
	shipping   *shipping.Validator
	fillerRate decimal.Decimal
}

// NewCalculator creates a Calculator over the given catalog and business
// rules.
func NewCalculator(
	variants catalog.Repository,
	tiers *tier.Resolver,
	shippingV *shipping.Validator,
	fillerRate decimal.Decimal,
) *Calculator {
	return &Calculator{
		variants:   variants,
		tiers:      tiers,
		shipping:   shippingV,
		fillerRate: fillerRate,
	}
}

var hundred = decimal.NewFromInt(100)

// Price resolves every line against the catalog in one batch, computes its
// packaging quote, and aggregates the business totals for the given tier.
func (c *Calculator) Price(ctx context.Context, items []LineItem, tierName string) ([]PricedItem, Totals, error) {
	if len(items) == 0 {
		return nil, Totals{Shipping: c.shipping.Validate(decimal.Zero)}, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.VariantID
	}

	fetched, err := c.variants.GetByIDs(ctx, ids)
	if err != nil {
		return nil, Totals{}, errors.Wrap(err, "get variants")
	}
	byID := make(map[string]catalog.Variant, len(fetched))
	for _, v := range fetched {
		byID[v.ID] = v
	}

	priced := make([]PricedItem, 0, len(items))
	var (
		subtotal = decimal.Zero
		filler   = decimal.Zero
		weight   = decimal.Zero
	)
	for _, item := range items {
		v, ok := byID[item.VariantID]
		if !ok {
			return nil, Totals{}, errors.Wrapf(catalog.ErrNotFound, "variant %s", item.VariantID)
		}

		q, err := pricing.Compute(pricing.Input{
			CrateQty:       item.CrateQty,
			PieceQty:       item.PieceQty,
			PiecesPerCrate: v.PiecesPerCrate,
			UnitPrice:      v.UnitPrice,
			WeightPerPiece: v.WeightPerPiece,
			FillerRate:     c.fillerRate,
		})
		if err != nil {
			return nil, Totals{}, errors.Wrapf(err, "price variant %s", item.VariantID)
		}

		priced = append(priced, PricedItem{
			LineItem:  item,
			Variant:   v,
			Quote:     q,
			LineTotal: q.Subtotal.Add(q.FillerCharges),
		})
		subtotal = subtotal.Add(q.Subtotal)
		filler = filler.Add(q.FillerCharges)
		weight = weight.Add(q.Weight)
	}

	rate := c.tiers.Rate(tierName)
	discount := c.tiers.Discount(tierName, subtotal)
	ship := c.shipping.Validate(weight)

	totals := Totals{
		Subtotal:        subtotal,
		DiscountPercent: rate.Mul(hundred),
		DiscountAmount:  discount,
		FillerCharges:   filler,
		TotalWeight:     weight,
		ShippingFee:     ship.Fee,
		FinalTotal:      subtotal.Sub(discount).Add(filler).Add(ship.Fee),
		Shipping:        ship,
	}
	return priced, totals, nil
}
