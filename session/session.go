// Package session is the token store: it keeps the access/refresh credential
// pair in HttpOnly cookies scoped to the site and exposes the pair to
// server-side code as an explicit Session value.
//
// A Session can only be obtained by reading the protected cookies of an
// incoming request or by saving a pair issued by the auth service. Code that
// decodes tokens accepts a Session, never a bare string, so the trust
// boundary of the cookie channel is carried by the type.
package session

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// TokenPair is the credential pair issued by the auth service.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both tokens are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Session is the request-scoped view of the credential pair. The zero value
// is the anonymous session.
type Session struct {
	access  string
	refresh string
}

func (s Session) AccessToken() string  { return s.access }
func (s Session) RefreshToken() string { return s.refresh }

// Authenticated reports whether an access token is present. It says nothing
// about the token's validity; only the user service can answer that.
func (s Session) Authenticated() bool { return s.access != "" }

// Store holds the cookie policy shared by every Jar.
type Store struct {
	secure bool
}

// NewStore returns a Store. secure forces the Secure attribute; it is also
// set whenever the request arrived over TLS.
func NewStore(secure bool) *Store {
	return &Store{secure: secure}
}

// Jar binds the Store to a single request/response pair. Writes are emitted
// as Set-Cookie headers immediately and are visible to later reads within the
// same request.
type Jar struct {
	store   *Store
	w       http.ResponseWriter
	r       *http.Request
	pending map[string]*string
}

// Jar returns a Jar for the given exchange.
func (s *Store) Jar(w http.ResponseWriter, r *http.Request) *Jar {
	return &Jar{store: s, w: w, r: r, pending: make(map[string]*string)}
}

// Get returns the cookie value, or false when absent or empty.
func (j *Jar) Get(name string) (string, bool) {
	if v, ok := j.pending[name]; ok {
		if v == nil || *v == "" {
			return "", false
		}
		return *v, true
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Set writes a protected cookie.
func (j *Jar) Set(name, value string) {
	http.SetCookie(j.w, j.cookie(name, value))
	j.pending[name] = &value
}

// Delete expires a cookie.
func (j *Jar) Delete(name string) {
	c := j.cookie(name, "")
	c.Expires = time.Unix(0, 0)
	c.MaxAge = -1
	http.SetCookie(j.w, c)
	j.pending[name] = nil
}

// Session returns the pair currently visible through the jar.
func (j *Jar) Session() Session {
	access, _ := j.Get(AccessTokenCookie)
	refresh, _ := j.Get(RefreshTokenCookie)
	return Session{access: access, refresh: refresh}
}

// Save writes both tokens and returns the resulting Session.
func (j *Jar) Save(p TokenPair) Session {
	j.Set(AccessTokenCookie, p.AccessToken)
	j.Set(RefreshTokenCookie, p.RefreshToken)
	return j.Session()
}

// Clear deletes both tokens.
func (j *Jar) Clear() {
	j.Delete(AccessTokenCookie)
	j.Delete(RefreshTokenCookie)
}

func (j *Jar) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.store.secure || RequestIsSecure(j.r),
		SameSite: http.SameSiteLaxMode,
	}
}

// RequestIsSecure reports whether r arrived over TLS, directly or through
// a proxy that says so.
func RequestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

type contextKey int

const (
	jarKey contextKey = iota
	sessionKey
)

// Middleware reads the Session once at request entry and stores it, together
// with the request's Jar, on the request context.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jar := s.Jar(w, r)
		ctx := context.WithValue(r.Context(), jarKey, jar)
		ctx = context.WithValue(ctx, sessionKey, jar.Session())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the Session read at request entry. Writes made through
// the Jar later in the request are not reflected; use the Jar for that.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey).(Session)
	return s
}

// JarFromContext returns the Jar installed by Middleware.
func JarFromContext(ctx context.Context) (*Jar, bool) {
	j, ok := ctx.Value(jarKey).(*Jar)
	return j, ok
}
