// Package pricing implements the crate/piece packaging calculator. Stone is
// sold in fixed-size crates; ordering loose pieces that do not land on a crate
// boundary incurs a filler charge for the empty slots in the final crate.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNegativeQuantity is returned when a crate or piece quantity is below zero.
var ErrNegativeQuantity = errors.New("quantity must not be negative")

// ConfigurationError indicates product packaging data that makes the
// calculation undefined, such as a crate size below one.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Input holds everything needed to price one line: the requested quantities
// and the product's packaging parameters.
type Input struct {
	CrateQty       int
	PieceQty       int
	PiecesPerCrate int
	UnitPrice      decimal.Decimal
	WeightPerPiece decimal.Decimal
	// FillerRate is the fraction of the unit price charged per filler piece.
	FillerRate decimal.Decimal
}

// Quote is the computed packaging and pricing breakdown for one line.
type Quote struct {
	TotalPieces   int
	TotalCrates   int
	FillerPieces  int
	FillerCharges decimal.Decimal
	Weight        decimal.Decimal
	Subtotal      decimal.Decimal
}

// Compute prices a single line. It is pure: safe to call for live previews
// without touching any cart state.
//
// TotalPieces = crates*piecesPerCrate + pieces. FillerPieces is the gap to the
// next full crate boundary, always in [0, piecesPerCrate-1]; each filler piece
// is billed at UnitPrice * FillerRate, additive on top of the subtotal.
func Compute(in Input) (Quote, error) {
	if in.CrateQty < 0 || in.PieceQty < 0 {
		return Quote{}, ErrNegativeQuantity
	}
	if in.PiecesPerCrate < 1 {
		return Quote{}, &ConfigurationError{
			Field:  "piecesPerCrate",
			Reason: "must be at least 1",
		}
	}

	total := in.CrateQty*in.PiecesPerCrate + in.PieceQty

	filler := 0
	if rem := total % in.PiecesPerCrate; rem != 0 {
		filler = in.PiecesPerCrate - rem
	}

	crates := (total + in.PiecesPerCrate - 1) / in.PiecesPerCrate

	pieces := decimal.NewFromInt(int64(total))
	q := Quote{
		TotalPieces:  total,
		TotalCrates:  crates,
		FillerPieces: filler,
		FillerCharges: in.UnitPrice.
			Mul(in.FillerRate).
			Mul(decimal.NewFromInt(int64(filler))).
			Round(2),
		Weight:   in.WeightPerPiece.Mul(pieces),
		Subtotal: in.UnitPrice.Mul(pieces).Round(2),
	}
	return q, nil
}
