package token

import (
	"time"

	"golang.org/x/oauth2"
)

// State describes whether a cached token is usable as-is, refreshable
// without user interaction, or needs an interactive login.
type State int

const (
	StateNotAuthenticated State = iota
	StateNeedsRefresh
	StateValid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateNeedsRefresh:
		return "needs_refresh"
	default:
		return "not_authenticated"
	}
}

// Token is the cached bearer token of one connection together with the
// client registration needed to refresh it.
type Token struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken,omitempty"`
	ExpiresAt       time.Time `json:"expiresAt"`
	IssuedAt        time.Time `json:"issuedAt"`
	ClientID        string    `json:"clientId,omitempty"`
	ClientSecret    string    `json:"clientSecret,omitempty"`
	ClientExpiresAt time.Time `json:"registrationExpiresAt,omitempty"`
	Region          string    `json:"region,omitempty"`
	StartURL        string    `json:"startUrl,omitempty"`
	Scopes          []string  `json:"scopes,omitempty"`
}

// CanRefresh reports whether a silent refresh can be attempted at now.
func (t *Token) CanRefresh(now time.Time) bool {
	if t == nil || t.RefreshToken == "" {
		return false
	}
	return t.ClientExpiresAt.IsZero() || now.Before(t.ClientExpiresAt)
}

// OAuth2 converts t into the x/oauth2 representation handed to HTTP clients.
func (t *Token) OAuth2() *oauth2.Token {
	if t == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// inherit fills fields a refresh response omits from the previous token.
func (t *Token) inherit(prev *Token) {
	if prev == nil {
		return
	}
	if t.RefreshToken == "" {
		t.RefreshToken = prev.RefreshToken
	}
	if t.ClientID == "" {
		t.ClientID = prev.ClientID
		t.ClientSecret = prev.ClientSecret
		t.ClientExpiresAt = prev.ClientExpiresAt
	}
	if t.Region == "" {
		t.Region = prev.Region
	}
	if t.StartURL == "" {
		t.StartURL = prev.StartURL
	}
	if len(t.Scopes) == 0 {
		t.Scopes = append([]string(nil), prev.Scopes...)
	}
}

func (t *Token) clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	c.Scopes = append([]string(nil), t.Scopes...)
	return &c
}

// DeviceAuthorization is an in-progress device-code grant. The user visits
// VerificationURIComplete (or VerificationURI and types UserCode).
type DeviceAuthorization struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
	Interval                time.Duration

	DeviceCode      string
	ClientID        string
	ClientSecret    string
	ClientExpiresAt time.Time

	// Extra carries endpoint specific state between StartDeviceAuthorization and PollToken.
	Extra any
}
