package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/events"
	"github.com/jrsteele09/go-sso-connect/internal/config"
	"github.com/jrsteele09/go-sso-connect/internal/metrics"
	"github.com/jrsteele09/go-sso-connect/internal/progress"
	"github.com/jrsteele09/go-sso-connect/internal/watcher"
	"github.com/jrsteele09/go-sso-connect/login"
	"github.com/jrsteele09/go-sso-connect/sessions"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/jrsteele09/go-sso-connect/token/cachefile"
	"github.com/jrsteele09/go-sso-connect/token/oidcdevice"
	"github.com/jrsteele09/go-sso-connect/token/ssooidc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// app holds the wired services shared by every command.
type app struct {
	cfg      config.Config
	bus      *events.Bus
	registry *connections.Registry
	sessions *sessions.Manager
	cache    *cachefile.Cache
	store    *token.Store
	login    *login.Service
	metrics  *metrics.Metrics
	promReg  *prometheus.Registry
}

type appOptions struct {
	openBrowser bool
	copyCode    bool
}

func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	if err := os.MkdirAll(cfg.GetConfigDir(), 0o700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	a := &app{
		cfg:     cfg,
		bus:     events.NewBus(),
		promReg: prometheus.NewRegistry(),
	}
	a.metrics = metrics.NewMetrics(a.promReg)
	a.bus.Subscribe(func(evt events.Event) {
		log.Debug().
			Str("event", string(evt.Type)).
			Str("connection_id", evt.ConnectionID).
			Str("feature", evt.Feature).
			Msg("connection event")
	})

	connRepo, err := connections.NewFileRepo(filepath.Join(cfg.GetConfigDir(), "connections.yaml"))
	if err != nil {
		return nil, err
	}
	if a.registry, err = connections.NewRegistry(connRepo); err != nil {
		return nil, err
	}

	sessionRepo, err := sessions.NewFileRepo(filepath.Join(cfg.GetConfigDir(), "sessions.yaml"))
	if err != nil {
		return nil, err
	}
	a.sessions, err = sessions.NewManager(sessionRepo, a.registry,
		sessions.WithPublisher(a.bus),
		sessions.WithFeaturePins(cfg.GetFeaturePins()),
	)
	if err != nil {
		return nil, err
	}

	if a.cache, err = cachefile.New(cfg.GetCacheDir(), cachefile.WithPassphrase(cfg.GetCachePassphrase())); err != nil {
		return nil, err
	}

	a.store, err = token.NewStore(a.endpointFactory(ctx), a.cache,
		token.WithStoreInteraction(newInteraction(opts)),
		token.WithStorePublisher(a.bus),
		token.WithStoreRefreshLead(cfg.GetRefreshLead()),
	)
	if err != nil {
		return nil, err
	}

	a.registry.OnDelete(a.sessions.ConnectionDeleted)
	a.registry.OnDelete(a.store.Remove)
	a.registry.OnDelete(func(id string) {
		a.bus.Publish(events.ConnectionDeleted, id)
	})

	a.login, err = login.NewService(a.registry, a.sessions, a.store,
		login.WithDefaultRegion(cfg.GetDefaultRegion()),
		login.WithDefaultScopes(cfg.GetDefaultScopes()),
		login.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	recs, err := a.registry.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		a.cache.Track(rec.ID)
	}
	a.metrics.SetConnections(len(recs))
	return a, nil
}

// endpointFactory picks the generic OIDC device flow when an issuer is
// configured and AWS SSO-OIDC otherwise.
func (a *app) endpointFactory(ctx context.Context) token.EndpointFactory {
	return func(settings connections.SSOSettings) (token.Endpoint, error) {
		if settings.IssuerURL != "" {
			return oidcdevice.New(ctx, oidcdevice.Settings{
				IssuerURL: settings.IssuerURL,
				ClientID:  settings.ClientID,
				Scopes:    settings.Scopes,
			})
		}
		return ssooidc.New(ctx, ssooidc.Settings{
			Region:     settings.Region,
			StartURL:   settings.StartURL,
			Scopes:     settings.Scopes,
			ClientName: a.cfg.GetClientName(),
		})
	}
}

// watch keeps providers in step with cache files changed by other processes.
func (a *app) watch(ctx context.Context) (*watcher.Watcher, error) {
	w, err := watcher.New(a.cache.Dir(), a.cache, a.store)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func newInteraction(opts appOptions) token.Interaction {
	popts := []progress.Option{
		progress.WithBrowser(opts.openBrowser),
		progress.WithClipboard(opts.copyCode),
	}
	if isTerminal(os.Stdin) {
		return progress.NewSpinner(os.Stdin, os.Stderr, popts...)
	}
	return progress.NewConsole(os.Stderr, popts...)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
