package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/theavidstallion/quantrust/activity"
	"github.com/theavidstallion/quantrust/identity"
	"github.com/theavidstallion/quantrust/session"
	"github.com/theavidstallion/quantrust/sso"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// writeServiceError maps domain errors onto the HTTP taxonomy. Anything
// unmapped is an internal failure and gets logged with its chain.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, session.ErrUserAlreadyExists):
		writeError(w, http.StatusConflict, "User already exists")
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrSessionInvalid):
		writeError(w, http.StatusForbidden, "Invalid session")
	case errors.Is(err, sso.ErrProviderRejected):
		writeError(w, http.StatusUnauthorized, "Identity provider rejected the login")
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, identity.ErrStorageUnavailable), errors.Is(err, activity.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
