package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/theavidstallion/quantrust/identity"
	"github.com/theavidstallion/quantrust/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyClaims stores the verified access-token claims for the
// lifetime of one request.
const ContextKeyClaims ContextKey = "claims"

// ClaimsFromContext returns the verified claims placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*token.AccessClaims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.AccessClaims)
	return claims, ok
}

// RequireAuth is the presence gate. A missing or blank bearer header is
// 401; a present but invalid, expired or tampered token is 403. The two
// signals are distinct and must not be collapsed.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "Access Denied")
				return
			}

			claims, err := s.sessions.VerifyAccess(raw)
			if err != nil {
				writeError(w, http.StatusForbidden, "Invalid Token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireAdmin gates a route to Admin tokens. Must be chained after
// RequireAuth.
func (s *Server) RequireAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return s.requireRole(identity.RoleAdmin, "Access Denied: Admins Only")
}

// RequireStaff gates a route to Manager or Admin tokens. Must be chained
// after RequireAuth.
func (s *Server) RequireStaff() func(http.HandlerFunc) http.HandlerFunc {
	return s.requireRole(identity.RoleManager, "Access Denied: Staff Only")
}

// requireRole reads the role from the verified token claims only; storage
// is never re-queried on the hot path, so a role change takes effect when
// the current access token expires.
func (s *Server) requireRole(min identity.Role, denial string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.Role.AtLeast(min) {
				writeError(w, http.StatusForbidden, denial)
				return
			}
			next(w, r)
		}
	}
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	if raw == "" {
		return "", false
	}
	return raw, true
}
