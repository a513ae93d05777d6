// Package progress presents device authorizations to the user while a login
// is waiting, and lets the user cancel it.
package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jrsteele09/go-sso-connect/internal/browser"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/rs/zerolog/log"
)

var (
	codeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	urlStyle   = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("39"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type options struct {
	openBrowser bool
	copyCode    bool
	opener      func(string) error
	copier      func(string) error
}

type Option func(*options)

// WithBrowser opens the verification page automatically.
func WithBrowser(enabled bool) Option {
	return func(o *options) {
		o.openBrowser = enabled
	}
}

// WithClipboard copies the user code to the clipboard.
func WithClipboard(enabled bool) Option {
	return func(o *options) {
		o.copyCode = enabled
	}
}

// WithOpener replaces the browser launcher, mainly for tests.
func WithOpener(opener func(string) error) Option {
	return func(o *options) {
		o.opener = opener
	}
}

func buildOptions(opts []Option) options {
	o := options{
		opener: browser.OpenURL,
		copier: browser.CopyToClipboard,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) present(connectionID string, auth token.DeviceAuthorization) string {
	target := auth.VerificationURIComplete
	if target == "" {
		target = auth.VerificationURI
	}
	if o.openBrowser && target != "" {
		if err := o.opener(target); err != nil {
			log.Debug().Err(err).Msg("could not open the verification page automatically")
		}
	}
	if o.copyCode && auth.UserCode != "" {
		if err := o.copier(auth.UserCode); err != nil {
			log.Debug().Err(err).Msg("could not copy the user code")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sign in to %s\n", connectionID)
	fmt.Fprintf(&b, "Open %s\n", urlStyle.Render(auth.VerificationURI))
	fmt.Fprintf(&b, "and confirm the code %s", codeStyle.Render(auth.UserCode))
	return boxStyle.Render(b.String())
}

func outcomeLine(err error) string {
	switch {
	case err == nil:
		return okStyle.Render("Authorized.")
	case errors.Is(err, token.ErrAuthCancelled):
		return ""
	default:
		return errorStyle.Render(token.UserMessage(err))
	}
}

// Console prints the authorization and relies on ctx for cancellation. It
// suits non-interactive terminals.
type Console struct {
	out  io.Writer
	opts options
}

var _ token.Interaction = (*Console)(nil)

func NewConsole(out io.Writer, opts ...Option) *Console {
	return &Console{out: out, opts: buildOptions(opts)}
}

func (c *Console) Begin(ctx context.Context, connectionID string, auth token.DeviceAuthorization) (context.Context, func(error)) {
	fmt.Fprintln(c.out, c.opts.present(connectionID, auth))
	fmt.Fprintln(c.out, "Waiting for authorization...")
	return ctx, func(err error) {
		if line := outcomeLine(err); line != "" {
			fmt.Fprintln(c.out, line)
		}
	}
}
