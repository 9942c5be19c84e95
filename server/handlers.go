package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/theavidstallion/quantrust/identity"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type sessionResponse struct {
	AccessToken string      `json:"accessToken"`
	User        *publicUser `json:"user"`
}

type publicUser struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Role      identity.Role     `json:"role"`
	Provider  identity.Provider `json:"provider"`
	CreatedAt string            `json:"createdAt"`
}

func toPublicUser(ident *identity.Identity) *publicUser {
	return &publicUser{
		ID:        ident.ID,
		Email:     ident.Email,
		Role:      ident.Role,
		Provider:  ident.Provider,
		CreatedAt: ident.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SignupHandler registers a local account.
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if _, err := s.sessions.Signup(r.Context(), req.Email, req.Password); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
	}
}

// LoginHandler verifies local credentials, sets the refresh cookie and
// returns the access token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		sess, pair, err := s.sessions.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.setRefreshCookie(w, r, pair.RefreshToken)
		writeJSON(w, http.StatusOK, sessionResponse{
			AccessToken: sess.AccessToken,
			User:        toPublicUser(sess.Identity),
		})
	}
}

// LogoutHandler clears the refresh cookie; there is no server-side token
// state to tear down.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.Logout(r.Context(), refreshTokenFromRequest(r))
		s.clearRefreshCookie(w, r)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

// KeycloakHandler exchanges an SSO authorization code for a local session.
func (s *Server) KeycloakHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Code == "" {
			writeError(w, http.StatusBadRequest, "Authorization code is required")
			return
		}

		sess, pair, err := s.sessions.SSOLogin(r.Context(), req.Code)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		s.setRefreshCookie(w, r, pair.RefreshToken)
		writeJSON(w, http.StatusOK, sessionResponse{
			AccessToken: sess.AccessToken,
			User:        toPublicUser(sess.Identity),
		})
	}
}

// RefreshHandler restores a session from the refresh cookie, minting a
// fresh access token only.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := refreshTokenFromRequest(r)
		if refreshToken == "" {
			writeError(w, http.StatusUnauthorized, "No session")
			return
		}

		sess, err := s.sessions.Refresh(r.Context(), refreshToken)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, sessionResponse{
			AccessToken: sess.AccessToken,
			User:        toPublicUser(sess.Identity),
		})
	}
}

// LogsHandler returns recent activity entries, newest first.
func (s *Server) LogsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = parsed
		}

		entries, err := s.sessions.Logs(r.Context(), limit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// HealthzHandler answers liveness and readiness probes.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
