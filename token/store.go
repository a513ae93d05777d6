package token

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/events"
	"github.com/rs/zerolog/log"
)

// EndpointFactory builds the token endpoint for a bearer-token connection.
type EndpointFactory func(settings connections.SSOSettings) (Endpoint, error)

// Store hands out exactly one Provider per connection id.
type Store struct {
	endpoints   EndpointFactory
	cache       Cache
	revocations RevocationList
	interaction Interaction
	publisher   events.Publisher
	refreshLead time.Duration
	nowFunc     func() time.Time

	mu        sync.Mutex
	providers map[string]*Provider
}

type StoreOption func(*Store)

func WithStoreInteraction(interaction Interaction) StoreOption {
	return func(s *Store) {
		s.interaction = interaction
	}
}

func WithStorePublisher(publisher events.Publisher) StoreOption {
	return func(s *Store) {
		s.publisher = publisher
	}
}

func WithStoreRefreshLead(lead time.Duration) StoreOption {
	return func(s *Store) {
		s.refreshLead = lead
	}
}

func WithStoreNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func NewStore(endpoints EndpointFactory, cache Cache, options ...StoreOption) (*Store, error) {
	if endpoints == nil {
		return nil, errors.New("[NewStore] endpoint factory is required")
	}
	if cache == nil {
		return nil, errors.New("[NewStore] cache is required")
	}
	s := &Store{
		endpoints:   endpoints,
		cache:       cache,
		revocations: NewInMemoryRevocationList(),
		refreshLead: DefaultRefreshLead,
		providers:   make(map[string]*Provider),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// ForConnection returns the provider of rec, creating it on first use.
func (s *Store) ForConnection(rec *connections.Record) (*Provider, error) {
	if rec == nil {
		return nil, errors.New("[ForConnection] record is required")
	}
	settings, ok := rec.BearerToken()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBearerToken, rec.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.providers[rec.ID]; ok {
		return p, nil
	}

	endpoint, err := s.endpoints(*settings)
	if err != nil {
		return nil, fmt.Errorf("create endpoint for %s: %w", rec.ID, err)
	}
	options := []ProviderOption{
		WithRevocationList(s.revocations),
		WithRefreshLead(s.refreshLead),
	}
	if s.interaction != nil {
		options = append(options, WithInteraction(s.interaction))
	}
	if s.publisher != nil {
		options = append(options, WithPublisher(s.publisher))
	}
	if s.nowFunc != nil {
		options = append(options, WithNowFunc(s.nowFunc))
	}
	p, err := NewProvider(rec.ID, endpoint, s.cache, options...)
	if err != nil {
		return nil, err
	}
	s.providers[rec.ID] = p
	return p, nil
}

// Get returns the provider already created for id.
func (s *Store) Get(id string) (*Provider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	return p, ok
}

// Remove drops the provider and cached token of a deleted connection.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.providers, id)
	s.mu.Unlock()

	s.revocations.Clear(id)
	if err := s.cache.Delete(id); err != nil {
		log.Warn().Err(err).Str("connection_id", id).Msg("failed to remove cached token")
	}
}

// Revoked marks a connection as externally revoked. The cache entry is
// already gone, so only the in-memory state changes. Unknown and already
// revoked connections are ignored.
func (s *Store) Revoked(id string) {
	p, ok := s.Get(id)
	if !ok || s.revocations.IsRevoked(id) {
		return
	}
	s.revocations.Revoke(id, s.now())
	p.Reload()
	p.publisher.Publish(events.CredentialsInvalidated, id)
}

// Changed makes the provider re-read its cache entry on next use. A token
// written by another process lifts an earlier revocation.
func (s *Store) Changed(id string) {
	s.revocations.Clear(id)
	if p, ok := s.Get(id); ok {
		p.Reload()
	}
}

func (s *Store) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now()
}
