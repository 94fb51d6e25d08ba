package auth

import (
	"sync"
	"time"
)

// DefaultStateTTL bounds how long an OAuth flow may stay in flight before
// its state token is discarded. Abandoned flows expire instead of leaking
// entries for the life of the process.
const DefaultStateTTL = 10 * time.Minute

type stateEntry struct {
	verifier  string
	expiresAt time.Time
}

// StateStore maps OAuth state tokens to PKCE code verifiers for the
// duration of one authorization flow. Entries are read-once and
// time-bounded.
type StateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]stateEntry
}

func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]stateEntry),
	}
}

// Put stores the verifier under the state token. Expired entries are swept
// on each insert so the map stays bounded by the number of live flows.
func (s *StateStore) Put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = stateEntry{verifier: verifier, expiresAt: now.Add(s.ttl)}
}

// Take returns the verifier for a state token and removes it. A missing or
// expired state returns false; a second Take of the same state also
// returns false.
func (s *StateStore) Take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if s.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.verifier, true
}

// Len reports the number of live entries (used in tests)
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
