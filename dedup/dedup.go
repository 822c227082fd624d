// Package dedup holds the in-memory fingerprint set that deduplicates
// posts across polling cycles. Pure set semantics, no persistence:
// a restart starts from an empty set.
package dedup

import "sync"

// Store is the sole deduplication authority for the process lifetime.
// It grows unbounded for as long as the process lives.
type Store struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewStore creates an empty fingerprint store.
func NewStore() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// Seen reports whether the fingerprint has been marked.
func (s *Store) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Mark records a fingerprint.
func (s *Store) Mark(id string) {
	s.mu.Lock()
	s.seen[id] = struct{}{}
	s.mu.Unlock()
}

// MarkIfNew marks the fingerprint and reports whether it was new.
// The mark happens on first sight, before any downstream processing,
// so a failed classification is not retried on the next cycle.
func (s *Store) MarkIfNew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Len returns the number of stored fingerprints.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
