package handler

import (
	"net/http"
	"time"

	"github.com/go-accounts-api/internal/transport/http/middleware"
)

// RefreshCookie carries the refresh token.
const RefreshCookie = "refreshToken"

// CookieConfig controls the session cookies. Both are http-only and SameSite=Lax.
type CookieConfig struct {
	Secure        bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

func (c CookieConfig) setSession(w http.ResponseWriter, access, refresh string) {
	c.set(w, middleware.AccessCookie, access, int(c.AccessMaxAge.Seconds()))
	c.set(w, RefreshCookie, refresh, int(c.RefreshMaxAge.Seconds()))
}

func (c CookieConfig) clearSession(w http.ResponseWriter) {
	c.set(w, middleware.AccessCookie, "", -1)
	c.set(w, RefreshCookie, "", -1)
}

func (c CookieConfig) set(w http.ResponseWriter, name, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}
	http.SetCookie(w, cookie)
}
