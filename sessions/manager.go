// Package sessions tracks which connection is active globally and for each
// feature that pins its own connection.
package sessions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/events"
	"github.com/rs/zerolog/log"
)

// ConnectionLookup resolves connection ids against the registry.
type ConnectionLookup interface {
	Get(id string) (*connections.Record, error)
}

type eventPublisher interface {
	PublishEvent(evt events.Event)
}

type Manager struct {
	repo      Repo
	lookup    ConnectionLookup
	publisher events.Publisher
	pins      map[string]string
	nowFunc   func() time.Time

	mu sync.Mutex
}

type ManagerOption func(*Manager)

func WithPublisher(publisher events.Publisher) ManagerOption {
	return func(m *Manager) {
		m.publisher = publisher
	}
}

// WithFeaturePins seeds feature pins that have no stored selection yet.
func WithFeaturePins(pins map[string]string) ManagerOption {
	return func(m *Manager) {
		for feature, id := range pins {
			m.pins[feature] = id
		}
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(repo Repo, lookup ConnectionLookup, options ...ManagerOption) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("[NewManager] repo is required")
	}
	if lookup == nil {
		return nil, errors.New("[NewManager] connection lookup is required")
	}
	m := &Manager{
		repo:      repo,
		lookup:    lookup,
		publisher: events.Nop{},
		pins:      make(map[string]string),
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(m)
	}

	for feature, id := range m.pins {
		scope := FeatureScope(feature)
		if _, err := repo.Get(scope); err == nil {
			continue
		}
		if err := repo.Upsert(Selection{Scope: scope, ConnectionID: id, UpdatedAt: m.nowFunc()}); err != nil {
			return nil, fmt.Errorf("seed pin for feature %s: %w", feature, err)
		}
	}
	return m, nil
}

// ActiveConnection returns the globally active connection, or nil.
func (m *Manager) ActiveConnection() *connections.Record {
	return m.resolve(GlobalScope)
}

// ActiveConnectionForFeature returns the connection pinned for feature when it
// is still registered, otherwise the global active connection.
func (m *Manager) ActiveConnectionForFeature(feature string) *connections.Record {
	if feature != "" {
		if rec := m.resolve(FeatureScope(feature)); rec != nil {
			return rec
		}
	}
	return m.ActiveConnection()
}

// SwitchConnection makes rec the global active connection, or clears it when
// rec is nil. The record's token state is not checked.
func (m *Manager) SwitchConnection(rec *connections.Record) error {
	return m.set(GlobalScope, rec)
}

// PinFeature pins rec for feature, or removes the pin when rec is nil.
func (m *Manager) PinFeature(feature string, rec *connections.Record) error {
	if feature == "" {
		return errors.New("[PinFeature] feature is required")
	}
	return m.set(FeatureScope(feature), rec)
}

// Selections lists every stored scope.
func (m *Manager) Selections() ([]Selection, error) {
	return m.repo.List()
}

// ConnectionDeleted clears every scope that referenced id.
func (m *Manager) ConnectionDeleted(id string) {
	m.mu.Lock()
	selections, err := m.repo.List()
	if err != nil {
		m.mu.Unlock()
		log.Err(err).Str("connection_id", id).Msg("failed to list sessions for deleted connection")
		return
	}
	var cleared []string
	for _, s := range selections {
		if s.ConnectionID != id {
			continue
		}
		if err := m.repo.Delete(s.Scope); err != nil {
			log.Err(err).Str("scope", s.Scope).Msg("failed to clear session of deleted connection")
			continue
		}
		cleared = append(cleared, s.Scope)
	}
	m.mu.Unlock()

	for _, scope := range cleared {
		m.notify(scope, "")
	}
}

func (m *Manager) set(scope string, rec *connections.Record) error {
	m.mu.Lock()
	var err error
	connectionID := ""
	if rec == nil {
		err = m.repo.Delete(scope)
	} else {
		connectionID = rec.ID
		err = m.repo.Upsert(Selection{Scope: scope, ConnectionID: rec.ID, UpdatedAt: m.nowFunc()})
	}
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("switch %s: %w", scope, err)
	}

	log.Info().Str("scope", scope).Str("connection_id", connectionID).Msg("active connection changed")
	m.notify(scope, connectionID)
	return nil
}

func (m *Manager) notify(scope, connectionID string) {
	feature, _ := FeatureOf(scope)
	if p, ok := m.publisher.(eventPublisher); ok {
		p.PublishEvent(events.Event{Type: events.ActiveConnectionChanged, ConnectionID: connectionID, Feature: feature})
		return
	}
	m.publisher.Publish(events.ActiveConnectionChanged, connectionID)
}

func (m *Manager) resolve(scope string) *connections.Record {
	selection, err := m.repo.Get(scope)
	if err != nil {
		return nil
	}
	rec, err := m.lookup.Get(selection.ConnectionID)
	if err != nil {
		if !errors.Is(err, connections.ErrConnectionNotFound) {
			log.Err(err).Str("scope", scope).Msg("failed to resolve active connection")
		}
		return nil
	}
	return rec
}
