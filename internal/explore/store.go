package explore

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Store keeps mounted screens in memory. A screen expires after ttl without
// access and is closed on expiry or removal.
type Store struct {
	cache *cache.Cache
}

// NewStore creates a store with the given idle expiry.
func NewStore(ttl time.Duration) *Store {
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}
	c := cache.New(ttl, cleanup)
	c.OnEvicted(func(_ string, v any) {
		if s, ok := v.(*Screen); ok {
			s.close()
		}
	})
	return &Store{cache: c}
}

// Add stores a screen.
func (st *Store) Add(s *Screen) {
	st.cache.Set(s.id, s, cache.DefaultExpiration)
}

// Get returns the screen owned by ownerID and extends its expiry. A screen
// owned by someone else is reported as not found.
func (st *Store) Get(screenID, ownerID string) (*Screen, error) {
	v, ok := st.cache.Get(screenID)
	if !ok {
		return nil, ErrScreenNotFound
	}
	s := v.(*Screen)
	if s.ownerID != ownerID {
		return nil, ErrScreenNotFound
	}
	// Fails only if the screen was removed concurrently; the caller then sees
	// ErrScreenClosed on its next operation.
	_ = st.cache.Replace(screenID, s, cache.DefaultExpiration)
	return s, nil
}

// Remove closes and removes the screen owned by ownerID.
func (st *Store) Remove(screenID, ownerID string) error {
	if _, err := st.Get(screenID, ownerID); err != nil {
		return err
	}
	st.cache.Delete(screenID)
	return nil
}

// Len returns the number of live screens, including expired ones not yet
// cleaned up.
func (st *Store) Len() int {
	return st.cache.ItemCount()
}

// Close closes and removes every screen.
func (st *Store) Close() {
	for id := range st.cache.Items() {
		st.cache.Delete(id)
	}
}
