package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/theavidstallion/quantrust/internal/config"
	"github.com/theavidstallion/quantrust/internal/obs"
	"github.com/theavidstallion/quantrust/session"
)

// Server is the HTTP surface of the auth core. Every application route runs
// behind the mTLS gatekeeper; health and metrics endpoints are the only
// exemptions besides CORS preflight.
type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	sessions *session.Service
	log      zerolog.Logger
}

func New(cfg config.Config, sessions *session.Service, log zerolog.Logger) (*Server, error) {
	s := &Server{
		env:      cfg.Env,
		mux:      http.NewServeMux(),
		config:   cfg,
		sessions: sessions,
		log:      log,
	}
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, obs.Instrument(pattern, handler))
}

func (s *Server) initRoutes() {
	api := s.APIMiddleware()
	admin := append(s.APIMiddleware(), s.RequireAuth(), s.RequireAdmin())
	staff := append(s.APIMiddleware(), s.RequireAuth(), s.RequireStaff())

	// Session lifecycle
	s.RegisterRouteFunc("POST "+RouteAuthSignup, ChainMiddleware(s.SignupHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteAuthKeycloak, ChainMiddleware(s.KeycloakHandler(), api...))
	s.RegisterRouteFunc("GET "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), api...))

	// Protected resources
	s.RegisterRouteFunc("GET "+RouteAuthLogs, ChainMiddleware(s.LogsHandler(), admin...))
	s.RegisterRouteFunc("GET "+RouteUsers, ChainMiddleware(s.UsersHandler(), staff...))
	s.RegisterRouteFunc("PUT "+RouteUserRole, ChainMiddleware(s.UpdateRoleHandler(), admin...))

	// Preflight needs a route of its own with the method-scoped mux,
	// otherwise OPTIONS never reaches the CORS middleware.
	s.RegisterRouteFunc("OPTIONS /", ChainMiddleware(s.PreflightHandler(), s.CorsMiddleware))

	// Probes and metrics stay outside the gatekeeper, like preflight.
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteFunc("GET "+RouteReadyz, s.HealthzHandler())
	s.mux.Handle("GET "+RouteMetrics, obs.Handler())
	s.routes = append(s.routes, "GET "+RouteMetrics)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		s.log.Debug().Str("route", route).Msg("registered")
	}
}
