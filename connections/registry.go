package connections

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// DeleteHook is called after a connection has been removed from the registry.
type DeleteHook func(id string)

// Registry owns connection records. Writes are serialised so that at most one
// record exists per identity key.
type Registry struct {
	repo  Repo
	mu    sync.RWMutex
	hooks []DeleteHook
}

type RegistryOption func(*Registry)

// WithDeleteHook registers hooks run after every successful delete.
func WithDeleteHook(hooks ...DeleteHook) RegistryOption {
	return func(r *Registry) {
		r.hooks = append(r.hooks, hooks...)
	}
}

func NewRegistry(repo Repo, options ...RegistryOption) (*Registry, error) {
	if repo == nil {
		return nil, errors.New("[NewRegistry] repo is required")
	}
	r := &Registry{repo: repo}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// OnDelete adds a delete hook after construction.
func (r *Registry) OnDelete(hook DeleteHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// List returns every registered connection.
func (r *Registry) List() ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.repo.List()
}

// Get returns the record with id, or ErrConnectionNotFound.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.repo.Get(id)
}

// Create registers a new connection for profile. It fails with
// ErrDuplicateConnection when the identity key is already registered.
func (r *Registry) Create(profile Profile) (*Record, error) {
	rec, created, err := r.CreateIfAbsent(profile)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, rec.ID)
	}
	return rec, nil
}

// CreateIfAbsent atomically returns the existing record for the profile's
// identity key or registers a new one. created reports which happened.
func (r *Registry) CreateIfAbsent(profile Profile) (rec *Record, created bool, err error) {
	if profile == nil {
		return nil, false, fmt.Errorf("%w: nil profile", ErrInvalidProfile)
	}
	if err := profile.Validate(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.repo.Get(profile.IdentityKey())
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrConnectionNotFound) {
		return nil, false, fmt.Errorf("Registry.CreateIfAbsent Get: %w", err)
	}

	rec = profile.record()
	rec.CreatedAt = NowTimeFunc().UTC()
	if err := r.repo.Upsert(rec); err != nil {
		return nil, false, fmt.Errorf("Registry.CreateIfAbsent Upsert: %w", err)
	}
	log.Debug().Str("connection_id", rec.ID).Str("kind", string(rec.Kind)).Msg("connection registered")
	return rec.Clone(), true, nil
}

// Delete removes the connection. Deleting an unknown id is a no-op and does
// not run the delete hooks.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	if _, err := r.repo.Get(id); err != nil {
		r.mu.Unlock()
		if errors.Is(err, ErrConnectionNotFound) {
			return nil
		}
		return fmt.Errorf("Registry.Delete Get: %w", err)
	}
	if err := r.repo.Delete(id); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("Registry.Delete: %w", err)
	}
	hooks := append([]DeleteHook(nil), r.hooks...)
	r.mu.Unlock()

	log.Debug().Str("connection_id", id).Msg("connection deleted")
	for _, hook := range hooks {
		hook(id)
	}
	return nil
}
