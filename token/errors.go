package token

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenRefresh means the endpoint rejected a silent refresh. It is
	// recoverable through Reauthenticate.
	ErrTokenRefresh = errors.New("token refresh rejected")
	// ErrRefreshUnavailable means a silent refresh could not reach a verdict,
	// for example on network errors. The token is kept and no reauth follows.
	ErrRefreshUnavailable = errors.New("token refresh failed")
	// ErrAuthCancelled means the user aborted the interactive flow.
	ErrAuthCancelled = errors.New("authentication cancelled")
	// ErrAuthFailed means the backend rejected the interactive flow.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNotAuthenticated is returned when a token is requested from a
	// connection that needs an interactive login first.
	ErrNotAuthenticated = errors.New("connection is not authenticated")
	// ErrNotCached is returned by caches that hold no token for a connection.
	ErrNotCached = errors.New("token not cached")
	// ErrNotBearerToken is returned when a provider is requested for a non bearer-token connection.
	ErrNotBearerToken = errors.New("connection does not use bearer tokens")
)

// AuthError ties one of the sentinel kinds above to a connection.
type AuthError struct {
	Kind         error
	ConnectionID string
	Err          error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.ConnectionID, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.ConnectionID, e.Kind, e.Err)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newAuthError(kind error, connectionID string, err error) *AuthError {
	return &AuthError{Kind: kind, ConnectionID: connectionID, Err: err}
}

// UserMessage renders err for display. Cancellation yields an empty string so
// callers can abort silently.
func UserMessage(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrAuthCancelled):
		return ""
	case errors.Is(err, ErrTokenRefresh), errors.Is(err, ErrRefreshUnavailable):
		return fmt.Sprintf("Could not refresh the connection token: %v", err)
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrNotAuthenticated):
		return fmt.Sprintf("Could not authenticate the connection: %v", err)
	default:
		return fmt.Sprintf("Connection error: %v", err)
	}
}
