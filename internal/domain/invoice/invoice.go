// Package invoice materializes a reserved cart into an immutable pro-forma
// invoice: frozen line items, frozen totals, denormalized buyer and seller
// blocks. An invoice is created once per checkout attempt and never mutated.
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/identity"
)

// ErrNotFound is returned when a requested invoice does not exist.
var ErrNotFound = errors.New("invoice not found")

// Party is a denormalized identity/address block on an invoice.
type Party struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	TaxID   string `json:"tax_id,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

// Line is a frozen copy of a cart line with its pricing at snapshot time.
type Line struct {
	VariantID     string          `json:"variant_id"`
	ProductName   string          `json:"product_name"`
	Size          string          `json:"size"`
	CrateQty      int             `json:"crate_qty"`
	PieceQty      int             `json:"piece_qty"`
	TotalPieces   int             `json:"total_pieces"`
	FillerPieces  int             `json:"filler_pieces"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	FillerCharges decimal.Decimal `json:"filler_charges"`
	Weight        decimal.Decimal `json:"weight"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// Totals is the frozen business calculation.
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FillerCharges   decimal.Decimal `json:"filler_charges"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	TotalDue        decimal.Decimal `json:"total_due"`
	TotalWeight     decimal.Decimal `json:"total_weight"`
	PickupRequired  bool            `json:"pickup_required"`
}

// Invoice is the immutable pro-forma document produced at checkout.
type Invoice struct {
	Number          string    `json:"number"`
	OrderID         string    `json:"order_id"`
	IssueDate       time.Time `json:"issue_date"`
	DueDate         time.Time `json:"due_date"`
	Buyer           Party     `json:"buyer"`
	Seller          Party     `json:"seller"`
	Lines           []Line    `json:"lines"`
	Totals          Totals    `json:"totals"`
	ReservationNote string    `json:"reservation_note"`
	Terms           []string  `json:"terms"`
}

// Repository persists invoices. Documents are write-once.
type Repository interface {
	Save(ctx context.Context, inv *Invoice) error
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
}

// Materializer builds invoices from reserved carts. It is a pure
// transformation over its inputs and never touches the cart.
type Materializer struct {
	seller  Party
	dueTerm time.Duration
	terms   []string
	now     func() time.Time
}

// NewMaterializer creates a Materializer issuing invoices for the given
// seller with the given payment term.
func NewMaterializer(seller Party, dueTerm time.Duration) *Materializer {
	return &Materializer{
		seller:  seller,
		dueTerm: dueTerm,
		terms: []string{
			"This is a pro-forma invoice issued before payment.",
			"Payment is due within the stated term from the issue date.",
			"All materials remain property of the seller until paid in full.",
		},
		now: time.Now,
	}
}

// Materialize snapshots the priced cart into a new invoice. Each call
// generates a fresh number: a new checkout attempt replaces the previous
// invoice rather than versioning it.
func (m *Materializer) Materialize(
	orderID string,
	items []cart.PricedItem,
	totals cart.Totals,
	reservedUntil time.Time,
	buyer *identity.User,
) *Invoice {
	issued := m.now()

	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{
			VariantID:     item.VariantID,
			ProductName:   item.Variant.ProductName,
			Size:          item.Variant.Size,
			CrateQty:      item.CrateQty,
			PieceQty:      item.PieceQty,
			TotalPieces:   item.Quote.TotalPieces,
			FillerPieces:  item.Quote.FillerPieces,
			UnitPrice:     item.Variant.UnitPrice,
			FillerCharges: item.Quote.FillerCharges,
			Weight:        item.Quote.Weight,
			LineTotal:     item.LineTotal,
		}
	}

	return &Invoice{
		Number:    NewNumber(issued),
		OrderID:   orderID,
		IssueDate: issued,
		DueDate:   issued.Add(m.dueTerm),
		Buyer: Party{
			Name:    buyer.Name,
			Street:  buyer.Address.Street,
			City:    fmt.Sprintf("%s, %s", buyer.Address.City, buyer.Address.State),
			Pincode: buyer.Address.Pincode,
			Phone:   buyer.Phone,
			Email:   buyer.Email,
		},
		Seller: m.seller,
		Lines:  lines,
		Totals: Totals{
			Subtotal:        totals.Subtotal,
			DiscountPercent: totals.DiscountPercent,
			DiscountAmount:  totals.DiscountAmount,
			FillerCharges:   totals.FillerCharges,
			ShippingFee:     totals.ShippingFee,
			TotalDue:        totals.FinalTotal,
			TotalWeight:     totals.TotalWeight,
			PickupRequired:  totals.Shipping.ForcePickup,
		},
		ReservationNote: fmt.Sprintf(
			"Prices confirmed under inventory reservation held until %s.",
			reservedUntil.UTC().Format(time.RFC1123),
		),
		Terms: m.terms,
	}
}

// NewNumber generates a unique invoice number of the form
// RRS-YYYY-MM-XXXXXXXX. The random suffix makes collisions a non-issue at
// storefront scale.
func NewNumber(issued time.Time) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("RRS-%04d-%02d-%s", issued.Year(), int(issued.Month()), suffix)
}
