package cart

import "sync"

// KeyedMutex serializes operations per user. Only one cart mutation may be in
// flight for a given user at a time; a second concurrent call blocks until the
// first finishes, so locally computed totals never race the store.
//
// The cart and checkout services share a single instance so that an item
// mutation cannot interleave with a reservation transition on the same cart.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*userLock)}
}

// Lock acquires the mutex for key and returns the matching unlock function.
// Entries are reference counted and removed once unused, so the map does not
// grow with the user population.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &userLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
