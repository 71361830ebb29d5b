package server

// Route path constants
const (
	RouteCallback = "/callback/{session_id}"
	RouteSessions = "/sessions"
	RouteHealth   = "/health"
	RouteMetrics  = "/metrics"
)
