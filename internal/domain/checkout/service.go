package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/rrstones/storefront/internal/domain/cart"
	"github.com/rrstones/storefront/internal/domain/identity"
	"github.com/rrstones/storefront/internal/domain/invoice"
	"github.com/rrstones/storefront/internal/domain/notify"
)

// Service owns the cart lifecycle transitions around checkout. It shares the
// cart store and per-user locks with the cart aggregator so reservation
// transitions and item mutations on the same cart cannot interleave.
type Service struct {
	identity       identity.Provider
	store          cart.Store
	calc           *cart.Calculator
	inventory      Locker
	invoices       invoice.Repository
	materializer   *invoice.Materializer
	notify         notify.Sink
	locks          *cart.KeyedMutex
	defaultTimeout time.Duration
	now            func() time.Time
}

// NewService constructs the checkout Service.
func NewService(
	provider identity.Provider,
	store cart.Store,
	calc *cart.Calculator,
	locker Locker,
	invoices invoice.Repository,
	materializer *invoice.Materializer,
	sink notify.Sink,
	locks *cart.KeyedMutex,
	defaultTimeout time.Duration,
) *Service {
	return &Service{
		identity:       provider,
		store:          store,
		calc:           calc,
		inventory:      locker,
		invoices:       invoices,
		materializer:   materializer,
		notify:         sink,
		locks:          locks,
		defaultTimeout: defaultTimeout,
		now:            time.Now,
	}
}

// Reserve locks the cart for checkout: it places an inventory hold for every
// line's total pieces and transitions the cart to Reserved until now+timeout.
// Reserving an already-reserved cart refreshes the hold and the timer.
// A zero timeout uses the service default.
func (s *Service) Reserve(ctx context.Context, timeout time.Duration) (*cart.View, error) {
	user, err := s.identity.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	c, err := s.store.Load(ctx, user.ID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, cart.ErrEmptyCart
		}
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Items) == 0 {
		return nil, cart.ErrEmptyCart
	}

	items, totals, err := s.calc.Price(ctx, c.Items, user.Tier)
	if err != nil {
		return nil, err
	}

	// Piece-level hold per variant. Stock errors pass through verbatim so the
	// storefront can refresh stale quantities.
	pieces := make(map[string]int, len(items))
	for _, item := range items {
		pieces[item.VariantID] = item.Quote.TotalPieces
	}
	reservedUntil, err := s.inventory.Reserve(ctx, c.ID, pieces, timeout)
	if err != nil {
		return nil, err
	}

	c.MarkReserved(uuid.New().String(), reservedUntil)
	c.UpdatedAt = s.now()
	if err := s.store.Save(ctx, c); err != nil {
		// Keep the stores consistent: a cart we could not mark reserved must
		// not keep holding inventory.
		_ = s.inventory.Release(ctx, c.ID)
		return nil, errors.Wrap(err, "save reserved cart")
	}

	s.notify.Info(ctx, "Items reserved for checkout.")
	return &cart.View{Cart: c, Items: items, Totals: totals}, nil
}

// Cancel releases the reservation and returns the cart to Active. It accepts
// both live and expired reservations and is idempotent: cancelling an active
// cart is a harmless no-op.
func (s *Service) Cancel(ctx context.Context) error {
	user, err := s.identity.UserFromContext(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	c, err := s.store.Load(ctx, user.ID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "load cart")
	}
	if c.Status != cart.StatusReserved {
		return nil
	}

	if err := s.inventory.Release(ctx, c.ID); err != nil {
		return errors.Wrap(err, "release inventory")
	}

	c.Release()
	c.UpdatedAt = s.now()
	if err := s.store.Save(ctx, c); err != nil {
		return errors.Wrap(err, "save cart")
	}

	s.notify.Info(ctx, "Checkout cancelled; items released.")
	return nil
}

// Complete finalizes checkout: it requires a live reservation, commits the
// inventory hold, snapshots the cart into a pro-forma invoice, and replaces
// the cart with a fresh empty Active one. An expired reservation fails with
// ErrReservationExpired; the caller must Cancel and Reserve again.
func (s *Service) Complete(ctx context.Context) (*invoice.Invoice, error) {
	user, err := s.identity.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	c, err := s.store.Load(ctx, user.ID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrNotReserved
		}
		return nil, errors.Wrap(err, "load cart")
	}
	now := s.now()
	switch {
	case c.Status != cart.StatusReserved:
		return nil, ErrNotReserved
	case c.IsReservationExpired(now):
		return nil, ErrReservationExpired
	}

	items, totals, err := s.calc.Price(ctx, c.Items, user.Tier)
	if err != nil {
		return nil, err
	}

	orderID, err := s.inventory.Commit(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "commit inventory")
	}

	inv := s.materializer.Materialize(orderID, items, totals, *c.ReservedUntil, user)
	if err := s.invoices.Save(ctx, inv); err != nil {
		return nil, errors.Wrap(err, "save invoice")
	}

	// Terminal transition: the checked-out cart is replaced by a fresh empty
	// active cart for the user.
	fresh := cart.New(uuid.New().String(), user.ID)
	fresh.UpdatedAt = now
	if err := s.store.Save(ctx, fresh); err != nil {
		return nil, errors.Wrap(err, "reset cart")
	}

	s.notify.Success(ctx, "Order placed. Your pro-forma invoice is ready.")
	return inv, nil
}

// Countdown returns the remaining reservation time for display. It performs
// no transitions; an expired countdown only flags Expired.
func (s *Service) Countdown(ctx context.Context) (Countdown, error) {
	user, err := s.identity.UserFromContext(ctx)
	if err != nil {
		return Countdown{}, err
	}

	c, err := s.store.Load(ctx, user.ID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return Countdown{}, ErrNotReserved
		}
		return Countdown{}, errors.Wrap(err, "load cart")
	}
	if c.Status != cart.StatusReserved {
		return Countdown{}, ErrNotReserved
	}

	now := s.now()
	return Countdown{
		SecondsRemaining: c.SecondsRemaining(now),
		Expired:          c.IsReservationExpired(now),
	}, nil
}
