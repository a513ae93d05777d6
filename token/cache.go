package token

import (
	"sync"
)

// Cache persists the token of each connection.
type Cache interface {
	Load(connectionID string) (*Token, error)
	Save(connectionID string, tok *Token) error
	Delete(connectionID string) error
}

// InMemoryCache is a simple in-memory implementation
type InMemoryCache struct {
	tokens map[string]*Token
	mu     sync.RWMutex
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		tokens: make(map[string]*Token),
	}
}

func (c *InMemoryCache) Load(connectionID string) (*Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[connectionID]
	if !ok {
		return nil, ErrNotCached
	}
	return tok.clone(), nil
}

func (c *InMemoryCache) Save(connectionID string, tok *Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[connectionID] = tok.clone()
	return nil
}

func (c *InMemoryCache) Delete(connectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, connectionID)
	return nil
}
