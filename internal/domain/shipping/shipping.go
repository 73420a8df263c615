// Package shipping decides whether an order's aggregate weight can ship.
package shipping

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// warnRatio is the fraction of the weight ceiling above which a non-blocking
// advisory is attached.
var warnRatio = decimal.RequireFromString("0.8")

// Validator compares aggregate order weight against a fixed ceiling. It is
// stateless: callers re-run it after every quantity change.
type Validator struct {
	maxWeight decimal.Decimal // pounds
	fee       decimal.Decimal // flat fee when shipping is allowed
}

// NewValidator creates a Validator with the given weight ceiling and flat
// shipping fee.
func NewValidator(maxWeightLbs, fee decimal.Decimal) *Validator {
	return &Validator{maxWeight: maxWeightLbs, fee: fee}
}

// Result is the shipping decision for a given total weight.
type Result struct {
	AllowShipping bool
	ExceedsLimit  bool
	ForcePickup   bool
	Fee           decimal.Decimal
	Message       string
}

// Validate checks totalWeight against the ceiling. Weight exactly at the
// ceiling still ships; one pound over forces pickup and zeroes the fee.
// Between 80% of the ceiling and the ceiling an advisory message is attached
// but shipping stays allowed.
func (v *Validator) Validate(totalWeight decimal.Decimal) Result {
	if totalWeight.GreaterThan(v.maxWeight) {
		return Result{
			AllowShipping: false,
			ExceedsLimit:  true,
			ForcePickup:   true,
			Fee:           decimal.Zero,
			Message: fmt.Sprintf(
				"Your order weighs %s lbs, which exceeds the %s lbs shipping limit. Shipping is not available; pickup must be arranged.",
				totalWeight.String(), v.maxWeight.String(),
			),
		}
	}

	res := Result{
		AllowShipping: true,
		Fee:           v.fee,
	}
	if totalWeight.GreaterThan(v.maxWeight.Mul(warnRatio)) {
		res.Message = fmt.Sprintf(
			"Your order weighs %s lbs, approaching the %s lbs shipping limit.",
			totalWeight.String(), v.maxWeight.String(),
		)
	}
	return res
}
