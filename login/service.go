// Package login finds or creates SSO connections, makes sure their token is
// usable and activates them.
package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/internal/metrics"
	"github.com/jrsteele09/go-sso-connect/token"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRegion = "us-east-1"
)

// DefaultScopes is requested for new connections when none are given.
var DefaultScopes = []string{"sso:account:access"}

type Registry interface {
	Get(id string) (*connections.Record, error)
	CreateIfAbsent(profile connections.Profile) (*connections.Record, bool, error)
	Delete(id string) error
}

type Sessions interface {
	SwitchConnection(rec *connections.Record) error
}

type Providers interface {
	ForConnection(rec *connections.Record) (*token.Provider, error)
}

type Service struct {
	registry      Registry
	sessions      Sessions
	providers     Providers
	defaultRegion string
	defaultScopes []string
	metrics       *metrics.Metrics

	group singleflight.Group

	mu       sync.Mutex
	attempts map[string]*attempt
}

// attempt is the context an identity's shared login runs under. It outlives
// any single caller and is cancelled once every waiter has given up.
type attempt struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type flightResult struct {
	provider *token.Provider
	attempt  *attempt
}

type ServiceOption func(*Service)

func WithDefaultRegion(region string) ServiceOption {
	return func(s *Service) {
		if region != "" {
			s.defaultRegion = region
		}
	}
}

func WithDefaultScopes(scopes []string) ServiceOption {
	return func(s *Service) {
		if len(scopes) > 0 {
			s.defaultScopes = append([]string(nil), scopes...)
		}
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(registry Registry, sessions Sessions, providers Providers, options ...ServiceOption) (*Service, error) {
	if registry == nil {
		return nil, errors.New("[NewService] registry is required")
	}
	if sessions == nil {
		return nil, errors.New("[NewService] sessions is required")
	}
	if providers == nil {
		return nil, errors.New("[NewService] providers is required")
	}
	s := &Service{
		registry:      registry,
		sessions:      sessions,
		providers:     providers,
		defaultRegion: DefaultRegion,
		defaultScopes: append([]string(nil), DefaultScopes...),
		attempts:      make(map[string]*attempt),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

type loginRequest struct {
	region    string
	scopes    []string
	issuerURL string
	clientID  string
}

type LoginOption func(*loginRequest)

func WithRegion(region string) LoginOption {
	return func(r *loginRequest) {
		r.region = region
	}
}

// WithScopes sets the scopes of a new connection. Existing connections keep
// the scopes they were created with.
func WithScopes(scopes ...string) LoginOption {
	return func(r *loginRequest) {
		r.scopes = scopes
	}
}

// WithIssuer targets a generic OIDC issuer instead of IAM Identity Center.
func WithIssuer(issuerURL, clientID string) LoginOption {
	return func(r *loginRequest) {
		r.issuerURL = issuerURL
		r.clientID = clientID
	}
}

// LoginSSO returns a provider holding a valid token for the identity at
// startURL, and makes that connection the active one. A connection created by
// this call is removed again if the login does not complete. Concurrent calls
// for the same identity share one attempt, which is only abandoned when every
// caller has cancelled.
func (s *Service) LoginSSO(ctx context.Context, startURL string, options ...LoginOption) (*token.Provider, error) {
	req := loginRequest{region: s.defaultRegion}
	for _, opt := range options {
		opt(&req)
	}
	if len(req.scopes) == 0 {
		req.scopes = s.defaultScopes
	}
	profile := connections.ManagedSSOProfile{
		Region:    req.region,
		StartURL:  startURL,
		Scopes:    req.scopes,
		IssuerURL: req.issuerURL,
		ClientID:  req.clientID,
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	key := profile.IdentityKey()
	for {
		if err := ctx.Err(); err != nil {
			return nil, &token.AuthError{Kind: token.ErrAuthCancelled, ConnectionID: key, Err: err}
		}
		att := s.join(ctx, key)
		ch := s.group.DoChan(key, func() (any, error) {
			provider, err := s.login(att.ctx, profile)
			return flightResult{provider: provider, attempt: att}, err
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			if !s.leave(key, att) {
				return nil, &token.AuthError{Kind: token.ErrAuthCancelled, ConnectionID: key, Err: ctx.Err()}
			}
			// Last waiter: the attempt is cancelled, wait for its rollback.
			res = <-ch
			if res.Err == nil {
				return res.Val.(flightResult).provider, nil
			}
			return nil, &token.AuthError{Kind: token.ErrAuthCancelled, ConnectionID: key, Err: ctx.Err()}
		case res = <-ch:
			s.leave(key, att)
		}

		if res.Shared {
			log.Debug().Str("connection_id", key).Msg("joined in-flight login")
		}
		flight := res.Val.(flightResult)
		if res.Err != nil {
			if flight.attempt != att && errors.Is(res.Err, token.ErrAuthCancelled) && flight.attempt.ctx.Err() != nil {
				log.Debug().Str("connection_id", key).Msg("joined an abandoned login, retrying")
				continue
			}
			return nil, res.Err
		}
		return flight.provider, nil
	}
}

// join registers the caller as a waiter on the identity's attempt.
func (s *Service) join(ctx context.Context, key string) *attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if att, ok := s.attempts[key]; ok {
		att.waiters++
		return att
	}
	attCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	att := &attempt{ctx: attCtx, cancel: cancel, waiters: 1}
	s.attempts[key] = att
	return att
}

// leave drops a waiter and reports whether it was the last one, in which
// case the attempt has been cancelled.
func (s *Service) leave(key string, att *attempt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	att.waiters--
	if att.waiters > 0 {
		return false
	}
	if s.attempts[key] == att {
		delete(s.attempts, key)
	}
	att.cancel()
	return true
}

func (s *Service) login(ctx context.Context, profile connections.ManagedSSOProfile) (provider *token.Provider, err error) {
	started := time.Now()
	defer func() {
		s.metrics.ObserveLogin(outcome(err), started)
	}()

	rec, created, err := s.registry.CreateIfAbsent(profile)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "LoginSSO CreateIfAbsent")
	}
	if _, ok := rec.BearerToken(); !ok {
		return nil, fmt.Errorf("%w: %s", token.ErrNotBearerToken, rec.ID)
	}
	if created {
		log.Info().Str("connection_id", rec.ID).Msg("created sso connection")
	}

	provider, err = s.activate(ctx, rec)
	if err != nil && created {
		if delErr := s.registry.Delete(rec.ID); delErr != nil {
			log.Err(delErr).Str("connection_id", rec.ID).Msg("failed to roll back new connection")
		} else {
			log.Info().Str("connection_id", rec.ID).Msg("rolled back connection after failed login")
		}
	}
	return provider, err
}

func (s *Service) activate(ctx context.Context, rec *connections.Record) (*token.Provider, error) {
	provider, err := s.providers.ForConnection(rec)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "LoginSSO ForConnection")
	}
	if _, err := s.ReauthProviderIfNeeded(ctx, provider); err != nil {
		return nil, err
	}
	if err := s.sessions.SwitchConnection(rec); err != nil {
		return nil, pkgerrors.Wrap(err, "LoginSSO SwitchConnection")
	}
	return provider, nil
}

// ReauthProviderIfNeeded brings provider to the valid state. A rejected
// silent refresh falls through to a single interactive reauthentication.
func (s *Service) ReauthProviderIfNeeded(ctx context.Context, provider *token.Provider) (*token.Provider, error) {
	switch provider.State(ctx) {
	case token.StateValid:
		return provider, nil
	case token.StateNeedsRefresh:
		_, err := provider.ResolveToken(ctx)
		s.metrics.ObserveRefresh(outcome(err))
		if err == nil {
			return provider, nil
		}
		if !errors.Is(err, token.ErrTokenRefresh) {
			return nil, err
		}
		log.Info().Err(err).Str("connection_id", provider.ConnectionID()).Msg("silent refresh rejected, reauthenticating")
	}

	_, err := provider.Reauthenticate(ctx)
	s.metrics.ObserveReauth(outcome(err))
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// Logout drops the connection's token and removes it from the registry.
func (s *Service) Logout(id string) error {
	rec, err := s.registry.Get(id)
	if errors.Is(err, connections.ErrConnectionNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "Logout Get")
	}
	if _, ok := rec.BearerToken(); ok {
		provider, err := s.providers.ForConnection(rec)
		if err != nil {
			return pkgerrors.Wrap(err, "Logout ForConnection")
		}
		if err := provider.Invalidate(); err != nil {
			return err
		}
	}
	return s.registry.Delete(id)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, token.ErrAuthCancelled):
		return metrics.OutcomeCancelled
	default:
		return metrics.OutcomeFailed
	}
}
