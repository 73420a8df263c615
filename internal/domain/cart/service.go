package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rrstones/storefront/internal/domain/identity"
	"github.com/rrstones/storefront/internal/domain/notify"
)

// Store persists carts keyed by user. Implementations must return ErrNotFound
// when the user has no cart yet.
type Store interface {
	Load(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, userID string) error
}

// View is a cart together with its freshly recomputed pricing. Every service
// call returns a complete View so callers never combine stale totals with new
// items.
type View struct {
	Cart   *Cart
	Items  []PricedItem
	Totals Totals
}

// Service is the cart aggregator. It owns every item mutation: each call
// resolves the identity, serializes against other operations on the same
// user's cart, applies the change, recomputes totals in full, and persists
// state and totals together or not at all.
type Service struct {
	identity identity.Provider
	store    Store
	calc     *Calculator
	notify   notify.Sink
	locks    *KeyedMutex
	now      func() time.Time
}

// NewService constructs the cart Service. The identity provider is an
// explicit dependency: the service never reads ambient auth state.
func NewService(
	provider identity.Provider,
	store Store,
	calc *Calculator,
	sink notify.Sink,
	locks *KeyedMutex,
) *Service {
	return &Service{
		identity: provider,
		store:    store,
		calc:     calc,
		notify:   sink,
		locks:    locks,
		now:      time.Now,
	}
}

// Get returns the current cart with recomputed totals. Guests get a permanently
// empty view rather than an error: the cart is inert for anonymous identities.
// A failed load degrades to an empty cart shell so the storefront keeps
// working through transient storage trouble.
func (s *Service) Get(ctx context.Context) (*View, error) {
	user, err := s.identity.UserFromContext(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrAuthenticationRequired) {
			return &View{Cart: nil}, nil
		}
		return nil, err
	}

	c := s.loadOrShell(ctx, user.ID)
	items, totals, err := s.calc.Price(ctx, c.Items, user.Tier)
	if err != nil {
		return nil, err
	}
	return &View{Cart: c, Items: items, Totals: totals}, nil
}

// AddItem inserts or replaces the line for variantID with the given
// quantities. Re-adding a variant is a last-write-wins update, never a
// duplicate line.
func (s *Service) AddItem(ctx context.Context, variantID string, crateQty, pieceQty int) (*View, error) {
	return s.mutate(ctx, func(c *Cart) error {
		item, err := validateItem(variantID, crateQty, pieceQty)
		if err != nil {
			return err
		}
		c.upsertItem(item)
		return nil
	})
}

// UpdateItem replaces the quantities of an existing line. Updating a variant
// that is not in the cart is a validation error.
func (s *Service) UpdateItem(ctx context.Context, variantID string, crateQty, pieceQty int) (*View, error) {
	return s.mutate(ctx, func(c *Cart) error {
		if c.findItem(variantID) < 0 {
			return &ValidationError{Field: "variantId", Reason: "not in cart"}
		}
		item, err := validateItem(variantID, crateQty, pieceQty)
		if err != nil {
			return err
		}
		c.upsertItem(item)
		return nil
	})
}

// RemoveItem deletes the line for variantID. Removing an absent variant is a
// tolerated no-op.
func (s *Service) RemoveItem(ctx context.Context, variantID string) (*View, error) {
	return s.mutate(ctx, func(c *Cart) error {
		c.removeItem(variantID)
		return nil
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context) (*View, error) {
	return s.mutate(ctx, func(c *Cart) error {
		c.Items = nil
		return nil
	})
}

// mutate runs one serialized cart mutation: authenticate, lock the user's
// cart, apply fn to a working copy, recompute totals, persist. Any failure
// leaves the stored cart untouched.
func (s *Service) mutate(ctx context.Context, fn func(c *Cart) error) (*View, error) {
	user, err := s.identity.UserFromContext(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	c := s.loadOrShell(ctx, user.ID)
	if !c.CanModify() {
		return nil, ErrCartLocked
	}

	working := c.clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	items, totals, err := working.recompute(ctx, s.calc, user.Tier)
	if err != nil {
		return nil, err
	}

	working.UpdatedAt = s.now()
	if err := s.store.Save(ctx, working); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	return &View{Cart: working, Items: items, Totals: totals}, nil
}

// loadOrShell loads the user's cart, creating a fresh empty cart when none
// exists and substituting an empty shell on transient storage failure.
func (s *Service) loadOrShell(ctx context.Context, userID string) *Cart {
	c, err := s.store.Load(ctx, userID)
	switch {
	case err == nil:
		return c
	case errors.Is(err, ErrNotFound):
		return New(uuid.New().String(), userID)
	default:
		zctx.From(ctx).Warn("cart load failed, using empty shell",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.notify.Error(ctx, "We could not load your saved cart. Recent items may be missing.")
		return New(uuid.New().String(), userID)
	}
}

func validateItem(variantID string, crateQty, pieceQty int) (LineItem, error) {
	if variantID == "" {
		return LineItem{}, &ValidationError{Field: "variantId", Reason: "required"}
	}
	if crateQty < 0 || pieceQty < 0 {
		return LineItem{}, &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	if crateQty == 0 && pieceQty == 0 {
		return LineItem{}, &ValidationError{Field: "quantity", Reason: "specify at least one crate or piece"}
	}
	return LineItem{VariantID: variantID, CrateQty: crateQty, PieceQty: pieceQty}, nil
}

// clone returns a deep copy so a failed mutation cannot leak partial changes.
func (c *Cart) clone() *Cart {
	cp := *c
	cp.Items = append([]LineItem(nil), c.Items...)
	if c.ReservedUntil != nil {
		until := *c.ReservedUntil
		cp.ReservedUntil = &until
	}
	return &cp
}

// recompute prices the cart's items for the given tier.
func (c *Cart) recompute(ctx context.Context, calc *Calculator, tierName string) ([]PricedItem, Totals, error) {
	return calc.Price(ctx, c.Items, tierName)
}
