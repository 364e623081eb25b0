package middleware

import (
	"net/http"

	"github.com/gorilla/csrf"
)

const (
	CSRFCookieName = "universidad_csrf"
	CSRFFieldName  = "csrf_token"
)

// CSRF rejects unsafe requests without a valid form token. When secure is
// false requests are served as plain HTTP and only the token is checked;
// otherwise the Origin or Referer must also match the host.
func CSRF(key []byte, secure bool, onFailure http.Handler) func(http.Handler) http.Handler {
	protect := csrf.Protect(key,
		csrf.CookieName(CSRFCookieName),
		csrf.FieldName(CSRFFieldName),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.Secure(secure),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(onFailure),
	)

	return func(next http.Handler) http.Handler {
		h := protect(next)
		if secure {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}
