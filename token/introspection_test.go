package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/stretchr/testify/require"
)

func TestInspectExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, ok := token.InspectExpiry(signedJWT(t, exp))
	require.True(t, ok)
	require.True(t, exp.Equal(got))

	_, ok = token.InspectExpiry("opaque-access-token")
	require.False(t, ok)

	_, ok = token.InspectExpiry("not.a.jwt")
	require.False(t, ok)
}

func TestUserMessage(t *testing.T) {
	require.Empty(t, token.UserMessage(nil))
	require.Empty(t, token.UserMessage(&token.AuthError{Kind: token.ErrAuthCancelled, ConnectionID: "x"}))
	require.Contains(t, token.UserMessage(&token.AuthError{Kind: token.ErrTokenRefresh, ConnectionID: "x"}), "Could not refresh")
	require.Contains(t, token.UserMessage(&token.AuthError{Kind: token.ErrAuthFailed, ConnectionID: "x"}), "Could not authenticate")
}
