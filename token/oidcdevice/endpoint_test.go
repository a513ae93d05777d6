package oidcdevice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/jrsteele09/go-sso-connect/token/oidcdevice"
	"github.com/stretchr/testify/require"
)

type issuer struct {
	server        *httptest.Server
	tokenCalls    atomic.Int32
	rejectRefresh atomic.Bool
}

func newIssuer(t *testing.T) *issuer {
	t.Helper()
	iss := &issuer{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                        iss.server.URL,
			"authorization_endpoint":        iss.server.URL + "/authorize",
			"token_endpoint":                iss.server.URL + "/token",
			"device_authorization_endpoint": iss.server.URL + "/device",
			"jwks_uri":                      iss.server.URL + "/jwks",
		})
	})
	mux.HandleFunc("POST /device", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"device_code":               "device-code",
			"user_code":                 "WXYZ-1234",
			"verification_uri":          iss.server.URL + "/activate",
			"verification_uri_complete": iss.server.URL + "/activate?user_code=WXYZ-1234",
			"expires_in":                600,
			"interval":                  1,
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		iss.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") == "refresh_token" && iss.rejectRefresh.Load() {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "oidc-access",
			"token_type":    "Bearer",
			"refresh_token": "oidc-refresh",
			"expires_in":    3600,
		})
	})
	iss.server = httptest.NewServer(mux)
	t.Cleanup(iss.server.Close)
	return iss
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newEndpoint(t *testing.T, iss *issuer) *oidcdevice.Endpoint {
	t.Helper()
	e, err := oidcdevice.New(context.Background(), oidcdevice.Settings{
		IssuerURL: iss.server.URL,
		ClientID:  "cli",
	})
	require.NoError(t, err)
	return e
}

func TestEndpoint_DeviceFlow(t *testing.T) {
	iss := newIssuer(t)
	e := newEndpoint(t, iss)

	auth, err := e.StartDeviceAuthorization(context.Background())
	require.NoError(t, err)
	require.Equal(t, "WXYZ-1234", auth.UserCode)
	require.Contains(t, auth.VerificationURIComplete, "user_code=WXYZ-1234")

	tok, err := e.PollToken(context.Background(), auth)
	require.NoError(t, err)
	require.Equal(t, "oidc-access", tok.AccessToken)
	require.Equal(t, "oidc-refresh", tok.RefreshToken)
	require.Equal(t, "cli", tok.ClientID)
}

func TestEndpoint_PollCancelled(t *testing.T) {
	iss := newIssuer(t)
	e := newEndpoint(t, iss)

	auth, err := e.StartDeviceAuthorization(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.PollToken(ctx, auth)
	require.ErrorIs(t, err, token.ErrAuthCancelled)
	require.Zero(t, iss.tokenCalls.Load())
}

func TestEndpoint_Refresh(t *testing.T) {
	iss := newIssuer(t)
	e := newEndpoint(t, iss)

	tok, err := e.Refresh(context.Background(), &token.Token{RefreshToken: "old"})
	require.NoError(t, err)
	require.Equal(t, "oidc-access", tok.AccessToken)

	iss.rejectRefresh.Store(true)
	_, err = e.Refresh(context.Background(), &token.Token{RefreshToken: "old"})
	require.ErrorIs(t, err, token.ErrTokenRefresh)
}

func TestNew_RequiresDeviceEndpoint(t *testing.T) {
	_, err := oidcdevice.New(context.Background(), oidcdevice.Settings{ClientID: "cli"})
	require.Error(t, err)
	_, err = oidcdevice.New(context.Background(), oidcdevice.Settings{IssuerURL: "https://issuer.example.com"})
	require.Error(t, err)
}
