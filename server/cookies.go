package server

import (
	"net/http"
	"time"
)

// refreshCookieName is the server-controlled store for the long-lived
// credential. HttpOnly keeps it out of script reach; SameSite=None lets the
// cross-origin frontend send it with credentialed requests.
const refreshCookieName = "refresh_token"

func (s *Server) setRefreshCookie(w http.ResponseWriter, r *http.Request, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteNoneMode,
		MaxAge:   int(s.config.RefreshTokenTTL / time.Second),
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
	})
}

func refreshTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
