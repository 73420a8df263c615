package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested variant does not exist.
var ErrNotFound = errors.New("variant not found")

// Variant represents a purchasable product variant: a specific stone product
// in a specific size, sold by the crate or by the piece.
type Variant struct {
	ID             string
	ProductName    string
	Size           string
	PiecesPerCrate int
	UnitPrice      decimal.Decimal // price per single piece
	WeightPerPiece decimal.Decimal // pounds
	StockPieces    int
}

// Repository defines read operations for the variant catalog.
type Repository interface {
	List(ctx context.Context) ([]Variant, error)
	GetByID(ctx context.Context, id string) (*Variant, error)
	GetByIDs(ctx context.Context, ids []string) ([]Variant, error)
}
