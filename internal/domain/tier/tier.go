// Package tier maps customer tiers to discount rates.
package tier

import "github.com/shopspring/decimal"

// Resolver looks up the discount rate for a customer tier. Unknown or empty
// tiers resolve to zero discount rather than an error: guests and unclassified
// accounts simply pay full price.
type Resolver struct {
	rates map[string]decimal.Decimal
}

// NewResolver builds a Resolver from the given tier -> rate table. Rates are
// fractions in [0, 1).
func NewResolver(rates map[string]decimal.Decimal) *Resolver {
	table := make(map[string]decimal.Decimal, len(rates))
	for name, rate := range rates {
		table[name] = rate
	}
	return &Resolver{rates: table}
}

// DefaultRates is the distributor's standard tier table.
func DefaultRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"Tier1": decimal.RequireFromString("0.20"),
		"Tier2": decimal.RequireFromString("0.15"),
		"Tier3": decimal.RequireFromString("0.10"),
	}
}

// Rate returns the discount rate for the given tier, or zero when unknown.
func (r *Resolver) Rate(tierName string) decimal.Decimal {
	if rate, ok := r.rates[tierName]; ok {
		return rate
	}
	return decimal.Zero
}

// Discount applies the tier's rate to a subtotal, rounded to 2 decimal places.
func (r *Resolver) Discount(tierName string, subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(r.Rate(tierName)).Round(2)
}
