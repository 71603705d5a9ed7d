// Package cartstore keeps the in-progress carts server-side, keyed by the
// session's cart key. Carts live in memory only; a restart starts everyone
// with an empty cart.
package cartstore

import (
	"container/list"
	"sync"
	"time"

	"ropastore/internal/core"
)

type Store struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

type entry struct {
	key       string
	cart      core.Cart
	expiresAt time.Time
}

func New(maxSize int, ttl time.Duration) *Store {
	return &Store{
		maxSize:     maxSize,
		ttl:         ttl,
		items:       make(map[string]*list.Element),
		lru:         list.New(),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Get returns the cart for a key. A missing or expired key yields an empty
// cart, so callers never deal with absence.
func (s *Store) Get(key string) core.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.items[key]
	if !exists {
		return core.Cart{}
	}

	e := elem.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		s.removeElement(elem)
		return core.Cart{}
	}

	s.lru.MoveToFront(elem)
	return e.cart
}

// Put stores a cart under a key, refreshing its TTL.
func (s *Store) Put(key string, cart core.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{
		key:       key,
		cart:      cart,
		expiresAt: time.Now().Add(s.ttl),
	}

	if elem, exists := s.items[key]; exists {
		elem.Value = e
		s.lru.MoveToFront(elem)
		return
	}

	elem := s.lru.PushFront(e)
	s.items[key] = elem

	if s.lru.Len() > s.maxSize {
		oldest := s.lru.Back()
		if oldest != nil {
			s.removeElement(oldest)
		}
	}
}

// Delete drops the cart for a key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.items[key]; exists {
		s.removeElement(elem)
	}
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CleanExpired removes expired carts and returns how many were dropped.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if now.After(e.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		s.removeElement(elem)
	}
	return len(toRemove)
}

// StartCleanup runs periodic expiry in the background until Stop is called.
func (s *Store) StartCleanup(interval time.Duration) {
	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.CleanExpired()
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

// Stop halts the cleanup routine started by StartCleanup.
func (s *Store) Stop() {
	close(s.stopCleanup)
	<-s.cleanupDone
}

func (s *Store) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(s.items, e.key)
	s.lru.Remove(elem)
}
