package invoice

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/domain/identity"
	"github.com/rrstones/storefront/internal/domain/pricing"
	"github.com/rrstones/storefront/internal/domain/shipping"
)

func testItems() ([]cart.PricedItem, cart.Totals) {
	v := catalog.Variant{
		ID:             "aa11",
		ProductName:    "Blue Mist Granite",
		Size:           "12x12",
		PiecesPerCrate: 10,
		UnitPrice:      decimal.RequireFromString("100"),
		WeightPerPiece: decimal.RequireFromString("25"),
	}
	q := pricing.Quote{
		TotalPieces:   13,
		TotalCrates:   2,
		FillerPieces:  7,
		FillerCharges: decimal.RequireFromString("350"),
		Weight:        decimal.RequireFromString("325"),
		Subtotal:      decimal.RequireFromString("1300"),
	}
	items := []cart.PricedItem{{
		LineItem:  cart.LineItem{VariantID: "aa11", CrateQty: 1, PieceQty: 3},
		Variant:   v,
		Quote:     q,
		LineTotal: decimal.RequireFromString("1650"),
	}}
	totals := cart.Totals{
		Subtotal:        decimal.RequireFromString("1300"),
		DiscountPercent: decimal.RequireFromString("20"),
		DiscountAmount:  decimal.RequireFromString("260"),
		FillerCharges:   decimal.RequireFromString("350"),
		TotalWeight:     decimal.RequireFromString("325"),
		ShippingFee:     decimal.RequireFromString("120"),
		FinalTotal:      decimal.RequireFromString("1510"),
		Shipping:        shipping.Result{AllowShipping: true, Fee: decimal.RequireFromString("120")},
	}
	return items, totals
}

func testBuyer() *identity.User {
	return &identity.User{
		ID:    "u1",
		Name:  "Asha Traders",
		Email: "asha@example.com",
		Phone: "+91 9876500000",
		Tier:  "Tier1",
		Address: identity.Address{
			Street:  "456 Market Road",
			City:    "Delhi",
			State:   "Delhi",
			Pincode: "110001",
		},
	}
}

func testMaterializer() *Materializer {
	m := NewMaterializer(Party{
		Name:   "RR Stones",
		Street: "123 Business Park, Granite Street",
		City:   "Mumbai, Maharashtra 400001",
		Phone:  "+91 9876543210",
		Email:  "info@rrstones.example",
		TaxID:  "GST123456789",
	}, 30*24*time.Hour)
	m.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return m
}

func TestMaterialize(t *testing.T) {
	items, totals := testItems()
	reservedUntil := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)

	inv := testMaterializer().Materialize("order-1", items, totals, reservedUntil, testBuyer())

	assert.True(t, strings.HasPrefix(inv.Number, "RRS-2025-06-"), "number %s", inv.Number)
	assert.Equal(t, "order-1", inv.OrderID)
	assert.Equal(t, inv.IssueDate.AddDate(0, 0, 30), inv.DueDate)

	require.Len(t, inv.Lines, 1)
	line := inv.Lines[0]
	assert.Equal(t, "Blue Mist Granite", line.ProductName)
	assert.Equal(t, 13, line.TotalPieces)
	assert.Equal(t, 7, line.FillerPieces)
	assert.True(t, decimal.RequireFromString("1650").Equal(line.LineTotal))

	assert.Equal(t, "Asha Traders", inv.Buyer.Name)
	assert.Equal(t, "Delhi, Delhi", inv.Buyer.City)
	assert.Equal(t, "RR Stones", inv.Seller.Name)

	assert.True(t, decimal.RequireFromString("1510").Equal(inv.Totals.TotalDue))
	assert.False(t, inv.Totals.PickupRequired)
	assert.Contains(t, inv.ReservationNote, "reservation")
	assert.NotEmpty(t, inv.Terms)
}

func TestMaterialize_NumbersAreUniquePerAttempt(t *testing.T) {
	items, totals := testItems()
	reservedUntil := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)
	m := testMaterializer()

	seen := make(map[string]bool)
	for range 50 {
		inv := m.Materialize("order-1", items, totals, reservedUntil, testBuyer())
		require.False(t, seen[inv.Number], "duplicate invoice number %s", inv.Number)
		seen[inv.Number] = true
	}
}

func TestMaterialize_DoesNotAliasInputs(t *testing.T) {
	items, totals := testItems()
	reservedUntil := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)

	inv := testMaterializer().Materialize("order-1", items, totals, reservedUntil, testBuyer())

	items[0].CrateQty = 99
	assert.Equal(t, 1, inv.Lines[0].CrateQty, "invoice lines are frozen copies")
}

func TestRender(t *testing.T) {
	items, totals := testItems()
	reservedUntil := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)
	inv := testMaterializer().Materialize("order-1", items, totals, reservedUntil, testBuyer())

	var sb strings.Builder
	require.NoError(t, Render(&sb, inv))
	html := sb.String()

	assert.Contains(t, html, inv.Number)
	assert.Contains(t, html, "01 Jun 2025")
	assert.Contains(t, html, "Blue Mist Granite")
	assert.Contains(t, html, "RR Stones")
	assert.Contains(t, html, "Asha Traders")
	assert.Contains(t, html, "1510.00")

	// Rendering twice from the same snapshot yields the same document.
	var again strings.Builder
	require.NoError(t, Render(&again, inv))
	assert.Equal(t, html, again.String())
}

func TestRender_PickupRequired(t *testing.T) {
	items, totals := testItems()
	totals.Shipping = shipping.Result{ForcePickup: true, ExceedsLimit: true}
	totals.ShippingFee = decimal.Zero
	reservedUntil := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)
	inv := testMaterializer().Materialize("order-1", items, totals, reservedUntil, testBuyer())

	var sb strings.Builder
	require.NoError(t, Render(&sb, inv))
	assert.Contains(t, sb.String(), "Pickup required")
}