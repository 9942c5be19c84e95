package server

import (
	"net/http"

	"github.com/theavidstallion/quantrust/identity"
)

type roleRequest struct {
	Role string `json:"role"`
}

// UsersHandler lists all accounts with their public fields.
func (s *Server) UsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idents, err := s.sessions.Identities(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		users := make([]*publicUser, 0, len(idents))
		for _, ident := range idents {
			users = append(users, toPublicUser(ident))
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// UpdateRoleHandler promotes or demotes an account.
func (s *Server) UpdateRoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "User id is required")
			return
		}

		var req roleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		role, err := identity.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid role")
			return
		}

		ident, err := s.sessions.UpdateRole(r.Context(), id, role)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Role updated to " + string(role),
			"user":    toPublicUser(ident),
		})
	}
}
