package progress

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/stretchr/testify/require"
)

var testAuth = token.DeviceAuthorization{
	UserCode:                "ABCD-EFGH",
	VerificationURI:         "https://device.example.com",
	VerificationURIComplete: "https://device.example.com?user_code=ABCD-EFGH",
}

func TestConsole_PresentsCodeAndOpensBrowser(t *testing.T) {
	var out bytes.Buffer
	var opened string
	c := NewConsole(&out, WithBrowser(true), WithOpener(func(url string) error {
		opened = url
		return nil
	}))

	ctx := context.Background()
	flowCtx, finish := c.Begin(ctx, "sso;us-east-1;https://example.awsapps.com/start", testAuth)
	require.Equal(t, ctx, flowCtx)
	require.Equal(t, testAuth.VerificationURIComplete, opened)
	require.Contains(t, out.String(), "ABCD-EFGH")
	require.Contains(t, out.String(), "https://device.example.com")

	finish(nil)
	require.Contains(t, out.String(), "Authorized.")
}

func TestConsole_OpenerFailureIsIgnored(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out, WithBrowser(true), WithOpener(func(string) error {
		return errors.New("no browser")
	}))
	_, finish := c.Begin(context.Background(), "conn", testAuth)
	finish(nil)
	require.Contains(t, out.String(), "ABCD-EFGH")
}

func TestConsole_CancelledOutcomeIsSilent(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	_, finish := c.Begin(context.Background(), "conn", testAuth)
	before := out.Len()
	finish(&token.AuthError{Kind: token.ErrAuthCancelled, ConnectionID: "conn", Err: context.Canceled})
	require.Equal(t, before, out.Len())
}

func TestConsole_FailedOutcomeIsReported(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	_, finish := c.Begin(context.Background(), "conn", testAuth)
	finish(&token.AuthError{Kind: token.ErrAuthFailed, ConnectionID: "conn", Err: errors.New("expired")})
	require.Contains(t, out.String(), "Could not authenticate the connection")
}

func newModel() spinnerModel {
	return spinnerModel{spinner: spinner.New(), connectionID: "conn"}
}

func TestSpinnerModel_CancelKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	}
	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			next, cmd := newModel().Update(key)
			m := next.(spinnerModel)
			require.True(t, m.cancelled)
			require.NotNil(t, cmd)
			require.IsType(t, tea.QuitMsg{}, cmd())
			require.Contains(t, m.View(), "cancelled")
		})
	}
}

func TestSpinnerModel_OtherKeysIgnored(t *testing.T) {
	next, cmd := newModel().Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	require.False(t, next.(spinnerModel).cancelled)
	require.Nil(t, cmd)
}

func TestSpinnerModel_Finished(t *testing.T) {
	next, cmd := newModel().Update(finishedMsg{})
	m := next.(spinnerModel)
	require.True(t, m.finished)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.Contains(t, m.View(), "Authorized.")
}

func TestSpinnerModel_WaitingView(t *testing.T) {
	m := newModel()
	require.NotNil(t, m.Init())
	require.Contains(t, m.View(), "Waiting for authorization of conn")
}
