package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/domain/identity"
	"github.com/rrstones/storefront/internal/domain/notify"
	"github.com/rrstones/storefront/internal/domain/shipping"
	"github.com/rrstones/storefront/internal/domain/tier"
)

// --- Mock implementations ---

type mockVariantRepo struct {
	byID map[string]catalog.Variant
}

func (m *mockVariantRepo) List(_ context.Context) ([]catalog.Variant, error) {
	out := make([]catalog.Variant, 0, len(m.byID))
	for _, v := range m.byID {
		out = append(out, v)
	}
	return out, nil
}

func (m *mockVariantRepo) GetByID(_ context.Context, id string) (*catalog.Variant, error) {
	v, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &v, nil
}

func (m *mockVariantRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Variant, error) {
	var out []catalog.Variant
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockStore struct {
	carts   map[string]*Cart
	loadErr error
	saveErr error
}

func newMockStore() *mockStore {
	return &mockStore{carts: make(map[string]*Cart)}
}

func (m *mockStore) Load(_ context.Context, userID string) (*Cart, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.clone(), nil
}

func (m *mockStore) Save(_ context.Context, c *Cart) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.carts[c.UserID] = c.clone()
	return nil
}

func (m *mockStore) Delete(_ context.Context, userID string) error {
	delete(m.carts, userID)
	return nil
}

type staticProvider struct {
	user *identity.User
}

func (p staticProvider) UserFromContext(context.Context) (*identity.User, error) {
	if p.user == nil {
		return nil, identity.ErrAuthenticationRequired
	}
	return p.user, nil
}

// --- Helpers ---

func testVariant(id string) catalog.Variant {
	return catalog.Variant{
		ID:             id,
		ProductName:    "Blue Mist Granite",
		Size:           "12x12",
		PiecesPerCrate: 10,
		UnitPrice:      decimal.RequireFromString("100"),
		WeightPerPiece: decimal.RequireFromString("25"),
		StockPieces:    500,
	}
}

func testCalculator(variants ...catalog.Variant) *Calculator {
	byID := make(map[string]catalog.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}
	return NewCalculator(
		&mockVariantRepo{byID: byID},
		tier.NewResolver(tier.DefaultRates()),
		shipping.NewValidator(
			decimal.RequireFromString("48000"),
			decimal.RequireFromString("120"),
		),
		decimal.RequireFromString("0.5"),
	)
}

func testService(store Store, user *identity.User, variants ...catalog.Variant) *Service {
	return NewService(
		staticProvider{user: user},
		store,
		testCalculator(variants...),
		notify.Nop{},
		NewKeyedMutex(),
	)
}

func tier1User() *identity.User {
	return &identity.User{ID: "u1", Name: "Asha", Tier: "Tier1"}
}

// --- Tests ---

func TestAddItem_Guest(t *testing.T) {
	store := newMockStore()
	svc := testService(store, nil, testVariant("aa11"))

	_, err := svc.AddItem(context.Background(), "aa11", 1, 0)
	require.ErrorIs(t, err, identity.ErrAuthenticationRequired)
	assert.Empty(t, store.carts, "no state may be persisted for guests")
}

func TestGet_GuestSeesEmptyCart(t *testing.T) {
	svc := testService(newMockStore(), nil)

	view, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, view.Cart)
	assert.Empty(t, view.Items)
}

func TestAddItem_ComputesTotals(t *testing.T) {
	svc := testService(newMockStore(), tier1User(), testVariant("aa11"))

	// 1 crate of 10 + 3 pieces at 100/piece, Tier1, filler rate 0.5.
	view, err := svc.AddItem(context.Background(), "aa11", 1, 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 13, view.Items[0].Quote.TotalPieces)
	assert.Equal(t, 7, view.Items[0].Quote.FillerPieces)

	assert.True(t, decimal.RequireFromString("1300").Equal(view.Totals.Subtotal), "subtotal %s", view.Totals.Subtotal)
	assert.True(t, decimal.RequireFromString("260").Equal(view.Totals.DiscountAmount), "discount %s", view.Totals.DiscountAmount)
	assert.True(t, decimal.RequireFromString("350").Equal(view.Totals.FillerCharges), "filler %s", view.Totals.FillerCharges)
	assert.True(t, decimal.RequireFromString("325").Equal(view.Totals.TotalWeight), "weight %s", view.Totals.TotalWeight)
	assert.True(t, decimal.RequireFromString("120").Equal(view.Totals.ShippingFee), "shipping %s", view.Totals.ShippingFee)
	// 1300 - 260 + 350 + 120
	assert.True(t, decimal.RequireFromString("1510").Equal(view.Totals.FinalTotal), "total %s", view.Totals.FinalTotal)
}

func TestAddItem_MergeIsLastWriteWins(t *testing.T) {
	svc := testService(newMockStore(), tier1User(), testVariant("aa11"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "aa11", 2, 0)
	require.NoError(t, err)

	view, err := svc.AddItem(ctx, "aa11", 0, 5)
	require.NoError(t, err)

	require.Len(t, view.Cart.Items, 1, "re-adding must not duplicate the line")
	assert.Equal(t, 0, view.Cart.Items[0].CrateQty)
	assert.Equal(t, 5, view.Cart.Items[0].PieceQty)
}

func TestAddItem_ZeroQuantities(t *testing.T) {
	svc := testService(newMockStore(), tier1User(), testVariant("aa11"))

	_, err := svc.AddItem(context.Background(), "aa11", 0, 0)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity", vErr.Field)
}

func TestAddItem_UnknownVariant(t *testing.T) {
	svc := testService(newMockStore(), tier1User())

	_, err := svc.AddItem(context.Background(), "dead", 1, 0)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUpdateItem_AbsentLine(t *testing.T) {
	svc := testService(newMockStore(), tier1User(), testVariant("aa11"))

	_, err := svc.UpdateItem(context.Background(), "aa11", 1, 0)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "variantId", vErr.Field)
}

func TestRemoveItem_AbsentIsNoOp(t *testing.T) {
	svc := testService(newMockStore(), tier1User(), testVariant("aa11"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "aa11", 1, 0)
	require.NoError(t, err)

	first, err := svc.RemoveItem(ctx, "bb22")
	require.NoError(t, err)

	second, err := svc.RemoveItem(ctx, "bb22")
	require.NoError(t, err)

	assert.Equal(t, first.Cart.Items, second.Cart.Items)
	require.Len(t, second.Cart.Items, 1)
}

func TestClear(t *testing.T) {
	svc := testService(newMockStore(), tier1User(), testVariant("aa11"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "aa11", 1, 0)
	require.NoError(t, err)

	view, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
	assert.True(t, view.Totals.Subtotal.IsZero())
}

func TestMutate_ReservedCartIsLocked(t *testing.T) {
	store := newMockStore()
	svc := testService(store, tier1User(), testVariant("aa11"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "aa11", 1, 0)
	require.NoError(t, err)

	until := time.Now().Add(5 * time.Minute)
	store.carts["u1"].MarkReserved("res-1", until)

	_, err = svc.AddItem(ctx, "aa11", 2, 0)
	require.ErrorIs(t, err, ErrCartLocked)

	_, err = svc.RemoveItem(ctx, "aa11")
	require.ErrorIs(t, err, ErrCartLocked)
}

func TestMutate_ExpiredReservationStillLocked(t *testing.T) {
	// An expired reservation must be explicitly cancelled before mutation.
	store := newMockStore()
	svc := testService(store, tier1User(), testVariant("aa11"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "aa11", 1, 0)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	store.carts["u1"].MarkReserved("res-1", past)

	_, err = svc.AddItem(ctx, "aa11", 2, 0)
	require.ErrorIs(t, err, ErrCartLocked)
}

func TestMutate_SaveFailureLeavesStoreUntouched(t *testing.T) {
	store := newMockStore()
	svc := testService(store, tier1User(), testVariant("aa11"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "aa11", 1, 0)
	require.NoError(t, err)

	store.saveErr = errors.New("boom")
	_, err = svc.AddItem(ctx, "aa11", 9, 9)
	require.Error(t, err)

	store.saveErr = nil
	view, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Len(t, view.Cart.Items, 1)
	assert.Equal(t, 1, view.Cart.Items[0].CrateQty, "failed mutation must not persist")
}

func TestGet_LoadFailureFallsBackToEmptyShell(t *testing.T) {
	store := newMockStore()
	store.loadErr = errors.New("connection refused")
	svc := testService(store, tier1User())

	view, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, view.Cart)
	assert.Empty(t, view.Cart.Items)
	assert.Equal(t, StatusActive, view.Cart.Status)
}

func TestCart_Countdown(t *testing.T) {
	c := New("c1", "u1")
	now := time.Now()

	assert.EqualValues(t, 0, c.SecondsRemaining(now))
	assert.False(t, c.IsReservationExpired(now))

	c.MarkReserved("res-1", now.Add(5*time.Minute))
	assert.EqualValues(t, 300, c.SecondsRemaining(now))
	assert.False(t, c.IsReservationExpired(now))

	later := now.Add(5*time.Minute + time.Second)
	assert.EqualValues(t, 0, c.SecondsRemaining(later))
	assert.True(t, c.IsReservationExpired(later), "crossing zero flags expiry without transitioning")
	assert.Equal(t, StatusReserved, c.Status)

	c.Release()
	assert.Equal(t, StatusActive, c.Status)
	assert.Nil(t, c.ReservedUntil)

	// Idempotent release.
	c.Release()
	assert.Equal(t, StatusActive, c.Status)
}
