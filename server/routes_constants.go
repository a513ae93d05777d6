package server

// Route path constants
const (
	RouteHealth = "/healthz"

	// Connections
	RouteConnections        = "/connections"
	RouteActiveConnection   = "/connections/active"
	RouteConnection         = "/connections/{id}"
	RouteActivateConnection = "/connections/{id}/activate"
	RouteRefreshConnection  = "/connections/{id}/refresh"

	// Feature pins
	RouteFeatureConnection = "/features/{feature}/connection"

	RouteMetrics = "/metrics"
)
