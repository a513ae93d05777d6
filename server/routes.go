package server

import (
	"net/http"

	"github.com/jrsteele09/go-sso-connect/internal/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	s.RegisterRouteHandler("GET "+RouteConnections, ChainMiddleware(s.ListConnectionsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteActiveConnection, ChainMiddleware(s.ActiveConnectionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteConnection, ChainMiddleware(s.GetConnectionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteConnection, ChainMiddleware(s.DeleteConnectionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteActivateConnection, ChainMiddleware(s.ActivateConnectionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefreshConnection, ChainMiddleware(s.RefreshConnectionHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteFeatureConnection, ChainMiddleware(s.FeatureConnectionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteFeatureConnection, ChainMiddleware(s.PinFeatureHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteFeatureConnection, ChainMiddleware(s.UnpinFeatureHandler(), s.APIMiddleware()...))

	if s.deps.Registry != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler(s.deps.Registry))
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
