package handlers

import (
	"net/http"
	"time"

	"github.com/teamworkery/kakao-order/internal/core/domain"
)

const verifierTTL = 10 * time.Minute

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.Config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) setSession(w http.ResponseWriter, s *domain.Session) {
	ttl := time.Duration(s.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	h.setCookie(w, accessCookie, s.AccessToken, ttl)
	if s.RefreshToken != "" {
		h.setCookie(w, refreshCookie, s.RefreshToken, 30*24*time.Hour)
	}
}

func (h *Handler) clearSession(w http.ResponseWriter) {
	h.clearCookie(w, accessCookie)
	h.clearCookie(w, refreshCookie)
}

func cookieValue(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}
