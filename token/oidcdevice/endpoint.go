// Package oidcdevice implements token.Endpoint for any OpenID Connect issuer
// that supports the device authorization grant.
package oidcdevice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-sso-connect/token"
	"golang.org/x/oauth2"
)

type Settings struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

var _ token.Endpoint = (*Endpoint)(nil)

type Endpoint struct {
	settings     Settings
	oauth2Config *oauth2.Config
	nowFunc      func() time.Time
}

type discoveryClaims struct {
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
}

// New discovers the issuer's endpoints.
func New(ctx context.Context, settings Settings) (*Endpoint, error) {
	if settings.IssuerURL == "" {
		return nil, errors.New("[oidcdevice.New] issuer url is required")
	}
	if settings.ClientID == "" {
		return nil, errors.New("[oidcdevice.New] client id is required")
	}

	provider, err := oidc.NewProvider(ctx, settings.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	var claims discoveryClaims
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to read OIDC discovery document: %w", err)
	}
	if claims.DeviceAuthorizationEndpoint == "" {
		return nil, fmt.Errorf("issuer %s does not support the device authorization grant", settings.IssuerURL)
	}

	endpoint := provider.Endpoint()
	endpoint.DeviceAuthURL = claims.DeviceAuthorizationEndpoint

	scopes := settings.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess}
	}
	return &Endpoint{
		settings: settings,
		oauth2Config: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		nowFunc: time.Now,
	}, nil
}

func (e *Endpoint) Refresh(ctx context.Context, current *token.Token) (*token.Token, error) {
	src := e.oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: current.RefreshToken,
		Expiry:       e.nowFunc().Add(-time.Minute),
	})
	refreshed, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && isClientError(retrieveErr) {
			return nil, fmt.Errorf("%w: %s", token.ErrTokenRefresh, describe(retrieveErr))
		}
		return nil, err
	}
	return e.tokenFrom(refreshed), nil
}

func (e *Endpoint) StartDeviceAuthorization(ctx context.Context) (*token.DeviceAuthorization, error) {
	resp, err := e.oauth2Config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: start device authorization: %v", token.ErrAuthFailed, err)
	}
	return &token.DeviceAuthorization{
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		ExpiresAt:               resp.Expiry,
		Interval:                time.Duration(resp.Interval) * time.Second,
		DeviceCode:              resp.DeviceCode,
		ClientID:                e.settings.ClientID,
		Extra:                   resp,
	}, nil
}

// PollToken waits for the user to approve. oauth2 handles the pending and
// slow_down responses itself.
func (e *Endpoint) PollToken(ctx context.Context, auth *token.DeviceAuthorization) (*token.Token, error) {
	resp, ok := auth.Extra.(*oauth2.DeviceAuthResponse)
	if !ok {
		resp = &oauth2.DeviceAuthResponse{
			DeviceCode:              auth.DeviceCode,
			UserCode:                auth.UserCode,
			VerificationURI:         auth.VerificationURI,
			VerificationURIComplete: auth.VerificationURIComplete,
			Expiry:                  auth.ExpiresAt,
			Interval:                int64(auth.Interval / time.Second),
		}
	}

	tok, err := e.oauth2Config.DeviceAccessToken(ctx, resp)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %v", token.ErrAuthCancelled, ctx.Err())
		case errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "access_denied":
			return nil, fmt.Errorf("%w: authorization denied", token.ErrAuthCancelled)
		default:
			return nil, fmt.Errorf("%w: %v", token.ErrAuthFailed, err)
		}
	}
	return e.tokenFrom(tok), nil
}

func (e *Endpoint) tokenFrom(tok *oauth2.Token) *token.Token {
	return &token.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		IssuedAt:     e.nowFunc(),
		ClientID:     e.settings.ClientID,
		ClientSecret: e.settings.ClientSecret,
		StartURL:     e.settings.IssuerURL,
		Scopes:       append([]string(nil), e.oauth2Config.Scopes...),
	}
}

func isClientError(err *oauth2.RetrieveError) bool {
	if err.ErrorCode != "" {
		return true
	}
	return err.Response != nil && err.Response.StatusCode >= http.StatusBadRequest && err.Response.StatusCode < http.StatusInternalServerError
}

func describe(err *oauth2.RetrieveError) string {
	if err.ErrorCode != "" {
		return err.ErrorCode
	}
	return err.Error()
}
