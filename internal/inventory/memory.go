// Package inventory provides the reservation backend the checkout flow locks
// stock against. The in-memory store keeps piece-level stock per variant and
// time-boxed holds per cart.
package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrUnknownVariant is returned when a hold references a variant the store has
// no stock record for.
var ErrUnknownVariant = errors.New("unknown variant")

// ErrNoHold is returned by Commit when the cart has no active hold.
var ErrNoHold = errors.New("no active hold for cart")

// UnavailableError reports insufficient stock for one variant. The checkout
// flow passes it through to the caller verbatim so the storefront can refresh
// quantities.
type UnavailableError struct {
	VariantID string
	Requested int
	Available int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("variant %s: requested %d pieces, only %d available",
		e.VariantID, e.Requested, e.Available)
}

type hold struct {
	id        string
	items     map[string]int // variantID -> pieces
	expiresAt time.Time
}

// MemoryStore is an in-memory stock ledger with expiring holds. Expired holds
// are reaped by a background loop; reaping only returns pieces to the free
// pool, it never mutates any cart.
type MemoryStore struct {
	mu       sync.Mutex
	stock    map[string]int   // variantID -> total pieces
	reserved map[string]int   // variantID -> pieces held
	holds    map[string]*hold // cartID -> active hold
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stock:    make(map[string]int),
		reserved: make(map[string]int),
		holds:    make(map[string]*hold),
		now:      time.Now,
	}
}

// WithClock overrides the store's time source. Holds placed before the switch
// keep their original deadlines.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// SetStock sets the total piece count for a variant.
func (s *MemoryStore) SetStock(variantID string, pieces int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[variantID] = pieces
}

// Available returns the free (unheld) piece count for a variant.
func (s *MemoryStore) Available(variantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[variantID] - s.reserved[variantID]
}

// Reserve places a hold on the given pieces for ttl. A cart re-reserving
// replaces its previous hold atomically, so retries extend the timer instead
// of double-counting stock.
func (s *MemoryStore) Reserve(_ context.Context, cartID string, items map[string]int, ttl time.Duration) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Release any prior hold first so a refresh checks against the pool the
	// cart itself is not occupying.
	s.releaseLocked(cartID)

	for variantID, pieces := range items {
		total, ok := s.stock[variantID]
		if !ok {
			return time.Time{}, errors.Wrapf(ErrUnknownVariant, "%s", variantID)
		}
		available := total - s.reserved[variantID]
		if pieces > available {
			return time.Time{}, &UnavailableError{
				VariantID: variantID,
				Requested: pieces,
				Available: available,
			}
		}
	}

	expiresAt := s.now().Add(ttl)
	h := &hold{
		id:        uuid.New().String(),
		items:     make(map[string]int, len(items)),
		expiresAt: expiresAt,
	}
	for variantID, pieces := range items {
		h.items[variantID] = pieces
		s.reserved[variantID] += pieces
	}
	s.holds[cartID] = h

	return expiresAt, nil
}

// Release frees the hold for cartID. Releasing a cart without a hold is a
// no-op, making retries harmless.
func (s *MemoryStore) Release(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(cartID)
	return nil
}

func (s *MemoryStore) releaseLocked(cartID string) {
	h, ok := s.holds[cartID]
	if !ok {
		return
	}
	for variantID, pieces := range h.items {
		s.reserved[variantID] -= pieces
	}
	delete(s.holds, cartID)
}

// Commit converts the cart's hold into a permanent stock deduction and returns
// the generated order ID. Committing an expired hold fails: the pieces may
// already be promised elsewhere.
func (s *MemoryStore) Commit(_ context.Context, cartID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[cartID]
	if !ok {
		return "", ErrNoHold
	}
	if !s.now().Before(h.expiresAt) {
		s.releaseLocked(cartID)
		return "", ErrNoHold
	}

	for variantID, pieces := range h.items {
		s.stock[variantID] -= pieces
		s.reserved[variantID] -= pieces
	}
	delete(s.holds, cartID)

	return uuid.New().String(), nil
}

// StartCleanup launches a background reaper that frees expired holds every
// interval. It stops when ctx is cancelled.
func (s *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.reapExpired(now)
			}
		}
	}()
}

func (s *MemoryStore) reapExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cartID, h := range s.holds {
		if !now.Before(h.expiresAt) {
			s.releaseLocked(cartID)
		}
	}
}
