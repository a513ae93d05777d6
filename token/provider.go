package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-connect/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultRefreshLead is how long before expiry a token counts as needing refresh.
const DefaultRefreshLead = 5 * time.Minute

// Provider owns the token of a single bearer-token connection. All network
// operations on one provider are serialised.
type Provider struct {
	connectionID string
	endpoint     Endpoint
	cache        Cache
	revocations  RevocationList
	interaction  Interaction
	publisher    events.Publisher
	refreshLead  time.Duration
	nowFunc      func() time.Time

	mu     sync.Mutex
	token  *Token
	loaded bool

	opMu sync.Mutex
}

type ProviderOption func(*Provider)

func WithInteraction(interaction Interaction) ProviderOption {
	return func(p *Provider) {
		p.interaction = interaction
	}
}

func WithPublisher(publisher events.Publisher) ProviderOption {
	return func(p *Provider) {
		p.publisher = publisher
	}
}

func WithRefreshLead(lead time.Duration) ProviderOption {
	return func(p *Provider) {
		p.refreshLead = lead
	}
}

func WithRevocationList(revocations RevocationList) ProviderOption {
	return func(p *Provider) {
		p.revocations = revocations
	}
}

func WithNowFunc(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

func NewProvider(connectionID string, endpoint Endpoint, cache Cache, options ...ProviderOption) (*Provider, error) {
	if connectionID == "" {
		return nil, errors.New("[NewProvider] connection id is required")
	}
	if endpoint == nil {
		return nil, errors.New("[NewProvider] endpoint is required")
	}
	if cache == nil {
		return nil, errors.New("[NewProvider] cache is required")
	}

	p := &Provider{
		connectionID: connectionID,
		endpoint:     endpoint,
		cache:        cache,
		refreshLead:  DefaultRefreshLead,
	}
	for _, opt := range options {
		opt(p)
	}

	if p.interaction == nil {
		p.interaction = NopInteraction{}
	}
	if p.publisher == nil {
		p.publisher = events.Nop{}
	}
	if p.revocations == nil {
		p.revocations = NewInMemoryRevocationList()
	}
	if p.nowFunc == nil {
		p.nowFunc = time.Now
	}
	return p, nil
}

func (p *Provider) ConnectionID() string {
	return p.connectionID
}

// State classifies the cached token. It never performs network I/O.
func (p *Provider) State(_ context.Context) State {
	return p.stateOf(p.current())
}

func (p *Provider) stateOf(tok *Token) State {
	if tok == nil || tok.AccessToken == "" || p.revocations.IsRevoked(p.connectionID) {
		return StateNotAuthenticated
	}

	now := p.nowFunc()
	expiresAt := tok.ExpiresAt
	if exp, ok := InspectExpiry(tok.AccessToken); ok && (expiresAt.IsZero() || exp.Before(expiresAt)) {
		expiresAt = exp
	}
	if expiresAt.IsZero() || now.Add(p.refreshLead).Before(expiresAt) {
		return StateValid
	}
	if tok.CanRefresh(now) {
		return StateNeedsRefresh
	}
	return StateNotAuthenticated
}

// ResolveToken refreshes the token without user interaction.
func (p *Provider) ResolveToken(ctx context.Context) (*Token, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, newAuthError(ErrAuthCancelled, p.connectionID, err)
	}

	current := p.current()
	if current == nil || p.revocations.IsRevoked(p.connectionID) {
		return nil, newAuthError(ErrTokenRefresh, p.connectionID, errors.New("no cached token"))
	}
	if !current.CanRefresh(p.nowFunc()) {
		return nil, newAuthError(ErrTokenRefresh, p.connectionID, errors.New("no usable refresh token"))
	}

	refreshed, err := p.endpoint.Refresh(ctx, current.clone())
	if err != nil {
		log.Debug().Err(err).Str("connection_id", p.connectionID).Msg("token refresh failed")
		switch {
		case ctx.Err() != nil:
			return nil, newAuthError(ErrAuthCancelled, p.connectionID, err)
		case errors.Is(err, ErrTokenRefresh):
			return nil, newAuthError(ErrTokenRefresh, p.connectionID, err)
		default:
			return nil, newAuthError(ErrRefreshUnavailable, p.connectionID, err)
		}
	}

	refreshed.inherit(current)
	if err := p.store(refreshed); err != nil {
		return nil, err
	}
	log.Info().Str("connection_id", p.connectionID).Time("expires_at", refreshed.ExpiresAt).Msg("token refreshed")
	return refreshed.clone(), nil
}

// Reauthenticate runs the interactive device authorization flow. Once the
// interaction is cancelled no further requests are sent.
func (p *Provider) Reauthenticate(ctx context.Context) (*Token, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, newAuthError(ErrAuthCancelled, p.connectionID, err)
	}

	auth, err := p.endpoint.StartDeviceAuthorization(ctx)
	if err != nil {
		return nil, p.interactiveError(ctx, err)
	}

	flowCtx, finish := p.interaction.Begin(ctx, p.connectionID, *auth)
	tok, err := p.endpoint.PollToken(flowCtx, auth)
	if err != nil {
		err = p.interactiveError(flowCtx, err)
		finish(err)
		return nil, err
	}

	if err := p.store(tok); err != nil {
		finish(err)
		return nil, err
	}
	p.revocations.Clear(p.connectionID)
	finish(nil)

	log.Info().Str("connection_id", p.connectionID).Time("expires_at", tok.ExpiresAt).Msg("connection reauthenticated")
	return tok.clone(), nil
}

func (p *Provider) interactiveError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil, errors.Is(err, ErrAuthCancelled), errors.Is(err, context.Canceled):
		return newAuthError(ErrAuthCancelled, p.connectionID, err)
	default:
		return newAuthError(ErrAuthFailed, p.connectionID, err)
	}
}

// Invalidate drops the cached token after an external revocation.
func (p *Provider) Invalidate() error {
	p.mu.Lock()
	p.token = nil
	p.loaded = true
	p.mu.Unlock()

	p.revocations.Revoke(p.connectionID, p.nowFunc())
	if err := p.cache.Delete(p.connectionID); err != nil {
		return fmt.Errorf("invalidate %s: %w", p.connectionID, err)
	}
	p.publisher.Publish(events.CredentialsInvalidated, p.connectionID)
	log.Info().Str("connection_id", p.connectionID).Msg("connection credentials invalidated")
	return nil
}

// Reload forgets the in-memory token so the next read goes to the cache.
func (p *Provider) Reload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = nil
	p.loaded = false
}

// Token returns the current token, refreshing it silently when needed.
func (p *Provider) Token(ctx context.Context) (*Token, error) {
	tok := p.current()
	switch p.stateOf(tok) {
	case StateValid:
		return tok.clone(), nil
	case StateNeedsRefresh:
		return p.ResolveToken(ctx)
	default:
		return nil, newAuthError(ErrNotAuthenticated, p.connectionID, nil)
	}
}

// TokenSource adapts the provider for x/oauth2 HTTP clients.
func (p *Provider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, provider: p}
}

type tokenSource struct {
	ctx      context.Context
	provider *Provider
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.provider.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return tok.OAuth2(), nil
}

func (p *Provider) current() *Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		tok, err := p.cache.Load(p.connectionID)
		switch {
		case err == nil:
			p.token = tok
		case errors.Is(err, ErrNotCached):
		default:
			log.Warn().Err(err).Str("connection_id", p.connectionID).Msg("ignoring unreadable cached token")
		}
		p.loaded = true
	}
	return p.token
}

func (p *Provider) store(tok *Token) error {
	if tok.IssuedAt.IsZero() {
		tok.IssuedAt = p.nowFunc()
	}
	if err := p.cache.Save(p.connectionID, tok); err != nil {
		return fmt.Errorf("cache token for %s: %w", p.connectionID, err)
	}

	p.mu.Lock()
	p.token = tok.clone()
	p.loaded = true
	p.mu.Unlock()

	p.publisher.Publish(events.CredentialsUpdated, p.connectionID)
	return nil
}
