package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/catalog"
	"github.com/rrstones/storefront/internal/domain/identity"
	"github.com/rrstones/storefront/internal/domain/invoice"
	"github.com/rrstones/storefront/internal/domain/notify"
	"github.com/rrstones/storefront/internal/domain/shipping"
	"github.com/rrstones/storefront/internal/domain/tier"
	"github.com/rrstones/storefront/internal/inventory"
)

// --- Mock implementations ---

type memStore struct {
	carts map[string]*cart.Cart
}

func newMemStore() *memStore {
	return &memStore{carts: make(map[string]*cart.Cart)}
}

func (m *memStore) Load(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	cp.Items = append([]cart.LineItem(nil), c.Items...)
	return &cp, nil
}

func (m *memStore) Save(_ context.Context, c *cart.Cart) error {
	cp := *c
	cp.Items = append([]cart.LineItem(nil), c.Items...)
	m.carts[c.UserID] = &cp
	return nil
}

func (m *memStore) Delete(_ context.Context, userID string) error {
	delete(m.carts, userID)
	return nil
}

type mockVariantRepo struct {
	byID map[string]catalog.Variant
}

func (m *mockVariantRepo) List(_ context.Context) ([]catalog.Variant, error) { return nil, nil }

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

type mockInvoiceRepo struct {
	saved []*invoice.Invoice
}

func (m *mockInvoiceRepo) Save(_ context.Context, inv *invoice.Invoice) error {
	m.saved = append(m.saved, inv)
	return nil
}

func (m *mockInvoiceRepo) GetByNumber(_ context.Context, number string) (*invoice.Invoice, error) {
	for _, inv := range m.saved {
		if inv.Number == number {
			return inv, nil
		}
	}
	return nil, invoice.ErrNotFound
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

// --- Fixture ---

type fixture struct {
	svc      *Service
	store    *memStore
	stock    *inventory.MemoryStore
	invoices *mockInvoiceRepo
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v := catalog.Variant{
		ID:             "aa11",
		ProductName:    "Blue Mist Granite",
		Size:           "12x12",
		PiecesPerCrate: 10,
		UnitPrice:      decimal.RequireFromString("100"),
		WeightPerPiece: decimal.RequireFromString("25"),
	}

	calc := cart.NewCalculator(
		&mockVariantRepo{byID: map[string]catalog.Variant{v.ID: v}},
		tier.NewResolver(tier.DefaultRates()),
		shipping.NewValidator(
			decimal.RequireFromString("48000"),
			decimal.RequireFromString("120"),
		),
		decimal.RequireFromString("0.5"),
	)

	f := &fixture{
		now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	// One clock drives both the state machine and the stock ledger, so tests
	// can cross reservation deadlines deterministically.
	clock := func() time.Time { return f.now }

	store := newMemStore()
	stock := inventory.NewMemoryStore().WithClock(clock)
	stock.SetStock("aa11", 1000)
	invoices := &mockInvoiceRepo{}

	seller := invoice.Party{Name: "RR Stones", City: "Mumbai"}
	mat := invoice.NewMaterializer(seller, 30*24*time.Hour)

	f.store = store
	f.stock = stock
	f.invoices = invoices

	f.svc = NewService(
		staticProvider{user: &identity.User{ID: "u1", Name: "Asha", Tier: "Tier1"}},
		store,
		calc,
		stock,
		invoices,
		mat,
		notify.Nop{},
		cart.NewKeyedMutex(),
		15*time.Minute,
	)
	f.svc.now = clock

	return f
}

func (f *fixture) seedCart(t *testing.T) {
	t.Helper()
	c := cart.New("cart-1", "u1")
	c.Items = []cart.LineItem{{VariantID: "aa11", CrateQty: 1, PieceQty: 3}}
	require.NoError(t, f.store.Save(context.Background(), c))
}

// --- Tests ---

func TestReserve(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)

	view, err := f.svc.Reserve(context.Background(), 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, cart.StatusReserved, view.Cart.Status)
	require.NotNil(t, view.Cart.ReservedUntil)
	assert.NotEmpty(t, view.Cart.ReservationID)
	// 13 pieces held against stock.
	assert.Equal(t, 1000-13, f.stock.Available("aa11"))
}

func TestReserve_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reserve(context.Background(), 5*time.Minute)
	require.ErrorIs(t, err, cart.ErrEmptyCart)

	c := cart.New("cart-1", "u1")
	require.NoError(t, f.store.Save(context.Background(), c))

	_, err = f.svc.Reserve(context.Background(), 5*time.Minute)
	require.ErrorIs(t, err, cart.ErrEmptyCart)
}

func TestReserve_RefreshExtendsTimer(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)
	ctx := context.Background()

	first, err := f.svc.Reserve(ctx, 5*time.Minute)
	require.NoError(t, err)

	f.now = f.now.Add(3 * time.Minute)
	second, err := f.svc.Reserve(ctx, 5*time.Minute)
	require.NoError(t, err)

	assert.True(t, second.Cart.ReservedUntil.After(*first.Cart.ReservedUntil))
	// The refreshed hold must not double-count stock.
	assert.Equal(t, 1000-13, f.stock.Available("aa11"))
}

func TestReserve_InsufficientStockPassedThrough(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)
	f.stock.SetStock("aa11", 5)

	_, err := f.svc.Reserve(context.Background(), 5*time.Minute)

	var ue *inventory.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 13, ue.Requested)
	assert.Equal(t, 5, ue.Available)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx))
	assert.Equal(t, cart.StatusActive, f.store.carts["u1"].Status)
	assert.Nil(t, f.store.carts["u1"].ReservedUntil)
	assert.Equal(t, 1000, f.stock.Available("aa11"))

	// Second cancel is harmless.
	require.NoError(t, f.svc.Cancel(ctx))
}

func TestCancel_ExpiredReservation(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, 5*time.Minute)
	require.NoError(t, err)

	f.now = f.now.Add(5*time.Minute + time.Second)
	require.NoError(t, f.svc.Cancel(ctx))
	assert.Equal(t, cart.StatusActive, f.store.carts["u1"].Status)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, 5*time.Minute)
	require.NoError(t, err)

	inv, err := f.svc.Complete(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, inv.Number)
	assert.NotEmpty(t, inv.OrderID)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, 13, inv.Lines[0].TotalPieces)
	assert.Equal(t, 7, inv.Lines[0].FillerPieces)
	// 1300 - 260 + 350 + 120
	assert.True(t, decimal.RequireFromString("1510").Equal(inv.Totals.TotalDue), "total %s", inv.Totals.TotalDue)

	// Invoice persisted, stock committed, cart reset to a fresh active one.
	require.Len(t, f.invoices.saved, 1)
	assert.Equal(t, 1000-13, f.stock.Available("aa11"))

	fresh := f.store.carts["u1"]
	assert.Equal(t, cart.StatusActive, fresh.Status)
	assert.Empty(t, fresh.Items)
	assert.NotEqual(t, "cart-1", fresh.ID)
}

func TestComplete_ExpiredReservation(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, 5*time.Minute)
	require.NoError(t, err)

	f.now = f.now.Add(5*time.Minute + time.Second)

	cd, err := f.svc.Countdown(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, cd.SecondsRemaining)
	assert.True(t, cd.Expired)

	_, err = f.svc.Complete(ctx)
	require.ErrorIs(t, err, ErrReservationExpired)

	// The state machine still honors an explicit cancel.
	require.NoError(t, f.svc.Cancel(ctx))
	assert.Equal(t, cart.StatusActive, f.store.carts["u1"].Status)
}

func TestComplete_NotReserved(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)

	_, err := f.svc.Complete(context.Background())
	require.ErrorIs(t, err, ErrNotReserved)
}

func TestCountdown_NotReserved(t *testing.T) {
	f := newFixture(t)
	f.seedCart(t)

	_, err := f.svc.Countdown(context.Background())
	require.ErrorIs(t, err, ErrNotReserved)
}

func TestGuestCheckout(t *testing.T) {
	f := newFixture(t)
	f.svc.identity = staticProvider{user: nil}

	_, err := f.svc.Reserve(context.Background(), time.Minute)
	require.ErrorIs(t, err, identity.ErrAuthenticationRequired)

	err = f.svc.Cancel(context.Background())
	require.ErrorIs(t, err, identity.ErrAuthenticationRequired)
}
