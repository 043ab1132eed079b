package cache

import (
	"sync"
	"time"

	"github.com/kelanmoore/homedns/internal/name"
	"github.com/kelanmoore/homedns/internal/protocol"
)

// Shared wraps a Cache with a single mutex, matching the concurrency model
// of spec §4.5 and §5: the DNS engine uses one shared instance, and
// remove_expired/prune may run from the background sweep task concurrently
// with request handlers.
type Shared struct {
	mu sync.Mutex
	c  *Cache
}

// NewShared creates a shared cache with the given soft size cap.
func NewShared(desiredSize int) *Shared {
	return &Shared{c: New(desiredSize)}
}

func (s *Shared) Get(now time.Time, nsKey name.Name, inKey protocol.RecordType) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Get(now, nsKey, inKey)
}

func (s *Shared) GetAll(now time.Time, nsKey name.Name) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.GetAll(now, nsKey)
}

// Insert returns whether this insert pushed current_size past desired_size
// (spec §4.6's cache_overflow_count); callers fold that into the per-request
// metrics accumulator.
func (s *Shared) Insert(now time.Time, nsKey name.Name, inKey protocol.RecordType, value Value, expiresAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Insert(now, nsKey, inKey, value, expiresAt)
}

func (s *Shared) RemoveExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.RemoveExpired(now)
}

func (s *Shared) Prune(now time.Time) (expiredRemoved, namespacesEvicted int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Prune(now)
}

func (s *Shared) CurrentSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.CurrentSize()
}

// CheckInvariants validates the four structural invariants of spec §4.5,
// for use from tests (and, optionally, from the background sweeper as a
// consistency assertion before a mutex-poisoning-style fatal abort).
func (s *Shared) CheckInvariants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return checkInvariants(s.c)
}
