package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jrsteele09/go-sso-connect/internal/config"
	"github.com/jrsteele09/go-sso-connect/sessions"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, cfg config.Config, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(cfg, "test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func loadConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("SSOCONN_CONFIG_DIR", t.TempDir())
	t.Setenv("SSOCONN_CACHE_PASSPHRASE", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestCommands_ProfileLifecycle(t *testing.T) {
	cfg := loadConfig(t)

	out, err := execute(t, cfg, "add-profile", "dev")
	require.NoError(t, err)
	require.Contains(t, out, "Registered profile:dev")

	out, err = execute(t, cfg, "add-profile", "dev")
	require.NoError(t, err)
	require.Contains(t, out, "already registered")

	out, err = execute(t, cfg, "switch", "profile:dev")
	require.NoError(t, err)
	require.Contains(t, out, "profile:dev")

	out, err = execute(t, cfg, "list")
	require.NoError(t, err)
	require.Contains(t, out, "profile:dev")
	require.Contains(t, out, "static")

	_, err = execute(t, cfg, "pin", "deploy", "profile:dev")
	require.NoError(t, err)

	out, err = execute(t, cfg, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Active:")
	require.Contains(t, out, "deploy -> profile:dev")

	_, err = execute(t, cfg, "logout", "profile:dev")
	require.NoError(t, err)

	out, err = execute(t, cfg, "status")
	require.NoError(t, err)
	require.Contains(t, out, "No active connection")
	require.NotContains(t, out, "deploy ->")
}

func TestCommands_SwitchUnknownConnection(t *testing.T) {
	cfg := loadConfig(t)
	_, err := execute(t, cfg, "switch", "profile:missing")
	require.Error(t, err)
}

func TestCommands_PinRequiresConnection(t *testing.T) {
	cfg := loadConfig(t)
	_, err := execute(t, cfg, "pin", "deploy")
	require.Error(t, err)

	_, err = execute(t, cfg, "pin", "deploy", "--unpin")
	require.NoError(t, err)
}

func TestReportError(t *testing.T) {
	cancelled := &token.AuthError{Kind: token.ErrAuthCancelled, ConnectionID: "c", Err: context.Canceled}
	require.Equal(t, 130, reportError(cancelled))

	failed := &token.AuthError{Kind: token.ErrAuthFailed, ConnectionID: "c", Err: errors.New("denied")}
	require.Equal(t, 1, reportError(failed))
	require.Equal(t, 1, reportError(errors.New("boom")))
}

func TestPrintPins(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printPins(&out, []sessions.Selection{
		{Scope: sessions.GlobalScope, ConnectionID: "a"},
		{Scope: sessions.FeatureScope("deploy"), ConnectionID: "b"},
	}))
	require.True(t, strings.Contains(out.String(), "deploy -> b"))
	require.NotContains(t, out.String(), "global")

	out.Reset()
	require.NoError(t, printPins(&out, nil))
	require.Empty(t, out.String())
}
