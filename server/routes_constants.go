package server

// Route path constants. All application routes are defined here to ensure
// consistency and prevent typos.
const (
	// Session lifecycle
	RouteAuthSignup   = "/auth/signup"
	RouteAuthLogin    = "/auth/login"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthKeycloak = "/auth/keycloak"
	RouteAuthRefresh  = "/auth/refresh"

	// Protected resources
	RouteAuthLogs = "/auth/logs"
	RouteUsers    = "/users"
	RouteUserRole = "/users/{id}/role"

	// Operational
	RouteHealthz = "/healthz"
	RouteReadyz  = "/readyz"
	RouteMetrics = "/metrics"
)
