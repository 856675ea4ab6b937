package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/jmcleod/learngate/internal/uuid"
	"github.com/jmcleod/learngate/session"
)

const (
	csrfCookieName = "learngate_csrf"
	csrfHeaderName = "X-CSRF-Token"
	// csrfFormField carries the token for plain HTML form posts.
	csrfFormField = "csrf_token"
)

// CSRFMiddleware enforces double-submit cookie CSRF protection for
// cookie-authenticated mutating requests. Safe methods and requests without
// a session cookie are exempt, as are the paths in exempt. Safe requests of
// a signed-in browser that lacks the CSRF cookie get one issued.
func CSRFMiddleware(exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, sessionErr := r.Cookie(session.AccessTokenCookie)
			hasSession := sessionErr == nil

			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				if hasSession {
					if c, err := r.Cookie(csrfCookieName); err != nil || !uuid.Valid(c.Value) {
						writeCSRFCookie(w, r)
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			// Without a session cookie there is nothing for a cross-site
			// request to ride on.
			if !hasSession || skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusForbidden, "missing CSRF token")
				return
			}
			token := r.Header.Get(csrfHeaderName)
			if token == "" {
				token = r.PostFormValue(csrfFormField)
			}
			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(token)) != 1 {
				writeError(w, http.StatusForbidden, "invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeCSRFCookie sets the CSRF double-submit cookie. It is NOT HttpOnly so
// that clients can read it and echo it as a request header.
func writeCSRFCookie(w http.ResponseWriter, r *http.Request) string {
	token := uuid.New()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   session.RequestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// clearCSRFCookie removes the CSRF cookie on logout.
func clearCSRFCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: false,
		Secure:   session.RequestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// csrfToken returns the request's CSRF cookie value, if any.
func csrfToken(r *http.Request) string {
	if c, err := r.Cookie(csrfCookieName); err == nil {
		return c.Value
	}
	return ""
}
