package collector

import (
	"sync"

	"github.com/V4T54L/visitor-ingest/internal/pkg/identity"
)

// SessionKey is the SessionStore key holding the visitor's session id.
const SessionKey = "visitor_session"

// SessionStore holds values for the lifetime of one browser tab.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemorySessionStore is an in-process SessionStore.
type MemorySessionStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemorySessionStore creates an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{values: make(map[string]string)}
}

func (s *MemorySessionStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemorySessionStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// SessionID returns the id stored under SessionKey, generating and storing a
// new one on first use.
func SessionID(store SessionStore) string {
	if id, ok := store.Get(SessionKey); ok && id != "" {
		return id
	}
	id := identity.NewSessionID()
	store.Set(SessionKey, id)
	return id
}
