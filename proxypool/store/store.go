package store

import (
	"sync"

	"proxypool_nexus/proxypool/model"
)

// Store holds the ordered set of currently validated proxies and hands them
// out round-robin. Entries are appended in validation order; the order has
// no meaning beyond round-robin fairness. The slice and cursor are mutated
// by two independent actors (the refill controller inserting, consumers
// acquiring and removing), so every operation runs under the mutex and
// removal re-clamps the cursor atomically.
type Store struct {
	mu      sync.Mutex
	proxies []*model.ValidatedProxy
	cursor  int
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Acquire returns the entry at the round-robin cursor and advances the
// cursor modulo the current length. An empty pool yields (nil, false),
// which is a defined result, not an error.
func (s *Store) Acquire() (*model.ValidatedProxy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.proxies) == 0 {
		return nil, false
	}
	if s.cursor >= len(s.proxies) {
		s.cursor = 0
	}
	p := s.proxies[s.cursor]
	s.cursor = (s.cursor + 1) % len(s.proxies)
	return p, true
}

// InsertIfAbsent appends the entry unless one with the same identity is
// already pooled. It reports whether the insertion happened.
func (s *Store) InsertIfAbsent(p *model.ValidatedProxy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := p.Identity()
	for _, existing := range s.proxies {
		if existing.Identity() == id {
			return false
		}
	}
	s.proxies = append(s.proxies, p)
	return true
}

// ContainsIdentity reports whether an entry with the given identity is
// already pooled.
func (s *Store) ContainsIdentity(id model.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.proxies {
		if existing.Identity() == id {
			return true
		}
	}
	return false
}

// Remove deletes the entry matching host+port, ignoring credentials:
// callers identify proxies by address only. There is at most one match per
// identity. The cursor is re-clamped so the next Acquire stays in range.
func (s *Store) Remove(host string, port int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.proxies {
		if p.Host != host || p.Port != port {
			continue
		}
		s.proxies = append(s.proxies[:i], s.proxies[i+1:]...)
		if i < s.cursor {
			s.cursor--
		}
		if s.cursor >= len(s.proxies) {
			s.cursor = 0
		}
		return true
	}
	return false
}

// Size returns the current number of pooled entries.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.proxies)
}

// Snapshot returns a defensive copy of the current entry sequence.
func (s *Store) Snapshot() []*model.ValidatedProxy {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.ValidatedProxy, len(s.proxies))
	copy(out, s.proxies)
	return out
}
