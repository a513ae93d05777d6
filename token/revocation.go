package token

import (
	"sync"
	"time"
)

// RevocationList remembers connections whose credentials were revoked
// externally. A revoked connection stays NotAuthenticated until a fresh token
// is obtained interactively.
type RevocationList interface {
	Revoke(connectionID string, at time.Time)
	IsRevoked(connectionID string) bool
	Clear(connectionID string)
}

// InMemoryRevocationList is a simple in-memory implementation
type InMemoryRevocationList struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		revoked: make(map[string]time.Time),
	}
}

func (l *InMemoryRevocationList) Revoke(connectionID string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[connectionID] = at
}

func (l *InMemoryRevocationList) IsRevoked(connectionID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.revoked[connectionID]
	return exists
}

func (l *InMemoryRevocationList) Clear(connectionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.revoked, connectionID)
}
