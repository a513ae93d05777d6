// Package server exposes connection status over a loopback HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-sso-connect/connections"
	"github.com/jrsteele09/go-sso-connect/internal/config"
	"github.com/jrsteele09/go-sso-connect/internal/metrics"
	"github.com/jrsteele09/go-sso-connect/sessions"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Connections interface {
	List() ([]*connections.Record, error)
	Get(id string) (*connections.Record, error)
	Delete(id string) error
}

type Sessions interface {
	ActiveConnection() *connections.Record
	ActiveConnectionForFeature(feature string) *connections.Record
	SwitchConnection(rec *connections.Record) error
	PinFeature(feature string, rec *connections.Record) error
	Selections() ([]sessions.Selection, error)
}

type Providers interface {
	ForConnection(rec *connections.Record) (*token.Provider, error)
}

// Dependencies are the services the API reads from.
type Dependencies struct {
	Connections Connections
	Sessions    Sessions
	Providers   Providers
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	addr   string
	mux    *http.ServeMux
	routes []string
	deps   Dependencies
}

func New(cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Connections == nil {
		return nil, errors.New("[Server New] connections are required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[Server New] sessions are required")
	}
	if deps.Providers == nil {
		return nil, errors.New("[Server New] providers are required")
	}

	s := &Server{
		env:  cfg.GetEnv(),
		addr: cfg.GetAddr(),
		mux:  http.NewServeMux(),
		deps: deps,
	}
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("status API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status API: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
