package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/internal/config"
	"github.com/jrsteele09/go-sso-connect/login"
	"github.com/jrsteele09/go-sso-connect/server"
	"github.com/jrsteele09/go-sso-connect/sessions"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// appLoader builds the shared services lazily so that help and version
// output never touch the config directory.
type appLoader struct {
	cfg  config.Config
	opts appOptions
	app  *app
}

func (l *appLoader) load(cmd *cobra.Command) (*app, error) {
	if l.app != nil {
		return l.app, nil
	}
	a, err := newApp(cmd.Context(), l.cfg, l.opts)
	if err != nil {
		return nil, err
	}
	l.app = a
	return a, nil
}

func newRootCommand(cfg config.Config, version string) *cobra.Command {
	loader := &appLoader{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:   "ssoconn",
		Short: "Manage SSO bearer-token connections",
		Long: `ssoconn signs in to IAM Identity Center (or any OIDC issuer supporting the
device authorization grant), caches the resulting bearer tokens, refreshes them
silently and keeps track of which connection is active.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.PersistentFlags().BoolVar(&loader.opts.openBrowser, "browser", true, "open the verification page in the default browser")
	rootCmd.PersistentFlags().BoolVar(&loader.opts.copyCode, "copy-code", false, "copy the user code to the clipboard")

	rootCmd.AddCommand(
		newLoginCommand(loader),
		newListCommand(loader),
		newSwitchCommand(loader),
		newPinCommand(loader),
		newStatusCommand(loader),
		newAddProfileCommand(loader),
		newLogoutCommand(loader),
		newServeCommand(loader),
	)
	return rootCmd
}

func newLoginCommand(loader *appLoader) *cobra.Command {
	var (
		region    string
		scopes    []string
		issuerURL string
		clientID  string
	)
	cmd := &cobra.Command{
		Use:   "login <start-url>",
		Short: "Sign in to an SSO start URL and make it the active connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			var options []login.LoginOption
			if region != "" {
				options = append(options, login.WithRegion(region))
			}
			if len(scopes) > 0 {
				options = append(options, login.WithScopes(scopes...))
			}
			if issuerURL != "" {
				options = append(options, login.WithIssuer(issuerURL, clientID))
			}
			provider, err := a.login.LoginSSO(cmd.Context(), args[0], options...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", provider.ConnectionID())
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Identity Center region (defaults to the configured region)")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scope to request for a new connection (repeatable)")
	cmd.Flags().StringVar(&issuerURL, "issuer", "", "OIDC issuer URL to use instead of IAM Identity Center")
	cmd.Flags().StringVar(&clientID, "client-id", "", "pre-registered client id for --issuer")
	return cmd
}

func newListCommand(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			recs, err := a.registry.List()
			if err != nil {
				return err
			}
			var activeID string
			if active := a.sessions.ActiveConnection(); active != nil {
				activeID = active.ID
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVE\tID\tKIND\tSTATE")
			for _, rec := range recs {
				marker := ""
				if rec.ID == activeID {
					marker = activeStyle.Render("*")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, rec.ID, rec.Kind, a.stateOf(cmd, rec))
			}
			return tw.Flush()
		},
	}
}

func newSwitchCommand(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <connection-id>",
		Short: "Make a registered connection the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			rec, err := a.registry.Get(args[0])
			if err != nil {
				return err
			}
			if provider, err := a.store.ForConnection(rec); err == nil {
				if _, err := a.login.ReauthProviderIfNeeded(cmd.Context(), provider); err != nil {
					return err
				}
			} else if !errors.Is(err, token.ErrNotBearerToken) {
				return err
			}
			if err := a.sessions.SwitchConnection(rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active connection is now %s\n", rec.ID)
			return nil
		},
	}
}

func newPinCommand(loader *appLoader) *cobra.Command {
	var unpin bool
	cmd := &cobra.Command{
		Use:   "pin <feature> [connection-id]",
		Short: "Pin a feature to a connection, or remove the pin with --unpin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			feature := args[0]
			if unpin {
				if err := a.sessions.PinFeature(feature, nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s follows the active connection\n", feature)
				return nil
			}
			if len(args) != 2 {
				return errors.New("a connection id is required unless --unpin is set")
			}
			rec, err := a.registry.Get(args[1])
			if err != nil {
				return err
			}
			if err := a.sessions.PinFeature(feature, rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now uses %s\n", feature, rec.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unpin, "unpin", false, "remove the pin of the feature")
	return cmd
}

func newStatusCommand(loader *appLoader) *cobra.Command {
	var feature string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active connection and feature pins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rec := a.sessions.ActiveConnection()
			if feature != "" {
				rec = a.sessions.ActiveConnectionForFeature(feature)
			}
			if rec == nil {
				fmt.Fprintln(out, "No active connection")
			} else {
				fmt.Fprintf(out, "%s %s (%s)\n", headerStyle.Render("Active:"), rec.ID, a.stateOf(cmd, rec))
			}

			selections, err := a.sessions.Selections()
			if err != nil {
				return err
			}
			return printPins(out, selections)
		},
	}
	cmd.Flags().StringVar(&feature, "feature", "", "show the connection used by this feature")
	return cmd
}

func printPins(out io.Writer, selections []sessions.Selection) error {
	var pins []string
	for _, sel := range selections {
		if feature, ok := sessions.FeatureOf(sel.Scope); ok {
			pins = append(pins, fmt.Sprintf("  %s -> %s", feature, sel.ConnectionID))
		}
	}
	if len(pins) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(out, "%s\n%s\n", headerStyle.Render("Pinned features:"), strings.Join(pins, "\n"))
	return err
}

func newAddProfileCommand(loader *appLoader) *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "add-profile <profile-name>",
		Short: "Register a static credential profile as a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			rec, created, err := a.registry.CreateIfAbsent(connections.CredentialProfile{ProfileName: args[0], Region: region})
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already registered\n", rec.ID)
				return nil
			}
			a.metrics.SetConnections(a.connectionCount())
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "default region of the profile")
	return cmd
}

func newLogoutCommand(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:     "logout <connection-id>",
		Aliases: []string{"delete"},
		Short:   "Forget a connection and its cached token",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			if err := a.login.Logout(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

func newServeCommand(loader *appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the connection status API on the loopback interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loader.load(cmd)
			if err != nil {
				return err
			}
			w, err := a.watch(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Stop()

			srv, err := server.New(a.cfg, server.Dependencies{
				Connections: a.registry,
				Sessions:    a.sessions,
				Providers:   a.store,
				Metrics:     a.metrics,
				Registry:    a.promReg,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}
}

func (a *app) stateOf(cmd *cobra.Command, rec *connections.Record) string {
	if _, ok := rec.BearerToken(); !ok {
		return "static"
	}
	provider, err := a.store.ForConnection(rec)
	if err != nil {
		return "unknown"
	}
	return provider.State(cmd.Context()).String()
}

func (a *app) connectionCount() int {
	recs, err := a.registry.List()
	if err != nil {
		return 0
	}
	return len(recs)
}
