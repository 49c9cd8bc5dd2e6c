package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/se-atlas/server/internal/metrics"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Store holds sessions in memory. Sessions expire after ttl without use and
// the least recently used are evicted beyond size.
type Store struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *Session]
}

// NewStore creates a session store.
func NewStore(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	onEvict := func(string, *Session) { metrics.ActiveSessions.Dec() }
	return &Store{sessions: expirable.NewLRU[string, *Session](size, onEvict, ttl)}
}

// Create stores s and returns a copy.
func (st *Store) Create(s *Session) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions.Add(s.ID, s.clone())
	metrics.ActiveSessions.Inc()
	return s.clone()
}

// Get returns a copy of the session and refreshes its idle timer.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.LastSeen = time.Now()
	st.sessions.Add(id, s)
	return s.clone(), nil
}

// Update applies fn to the stored session and returns the updated copy.
func (st *Store) Update(id string, fn func(*Session)) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	next := s.clone()
	fn(next)
	next.ID = id
	next.LastSeen = time.Now()
	st.sessions.Add(id, next)
	return next.clone(), nil
}

// Delete discards the session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return st.sessions.Len()
}
