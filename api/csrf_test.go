package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/learngate/session"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serveCSRF(req *http.Request, exempt ...string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	CSRFMiddleware(exempt...)(okHandler).ServeHTTP(rec, req)
	return rec
}

func withSession(req *http.Request, csrf string) *http.Request {
	req.AddCookie(&http.Cookie{Name: session.AccessTokenCookie, Value: "tok"})
	if csrf != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: csrf})
	}
	return req
}

func TestCSRF_AnonymousMutationPasses(t *testing.T) {
	rec := serveCSRF(httptest.NewRequest(http.MethodPost, "/api/v1/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRF_MissingCookieRejected(t *testing.T) {
	rec := serveCSRF(withSession(httptest.NewRequest(http.MethodPost, "/api/v1/x", nil), ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRF_HeaderMustMatch(t *testing.T) {
	req := withSession(httptest.NewRequest(http.MethodPatch, "/api/v1/x", nil), "abc")
	req.Header.Set(csrfHeaderName, "abd")
	assert.Equal(t, http.StatusForbidden, serveCSRF(req).Code)

	req = withSession(httptest.NewRequest(http.MethodPatch, "/api/v1/x", nil), "abc")
	req.Header.Set(csrfHeaderName, "abc")
	assert.Equal(t, http.StatusOK, serveCSRF(req).Code)
}

func TestCSRF_FormField(t *testing.T) {
	body := url.Values{csrfFormField: {"abc"}}.Encode()
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/n1/read", strings.NewReader(body)), "abc")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusOK, serveCSRF(req).Code)
}

func TestCSRF_ExemptPath(t *testing.T) {
	req := withSession(httptest.NewRequest(http.MethodPost, "/auth/login", nil), "")
	assert.Equal(t, http.StatusOK, serveCSRF(req, "/auth/login").Code)
}

func TestCSRF_SafeRequestIssuesCookie(t *testing.T) {
	rec := serveCSRF(withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), ""))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.False(t, cookies[0].HttpOnly)

	// Well-formed cookies are left alone, malformed ones are replaced, and
	// anonymous callers never get one.
	assert.Empty(t, serveCSRF(withSession(httptest.NewRequest(http.MethodGet, "/", nil), "0b6e1a52-4f0e-4c8e-9d3e-2f1e7c5a9b10")).Result().Cookies())
	assert.Len(t, serveCSRF(withSession(httptest.NewRequest(http.MethodGet, "/", nil), "abc")).Result().Cookies(), 1)
	assert.Empty(t, serveCSRF(httptest.NewRequest(http.MethodGet, "/", nil)).Result().Cookies())
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, contentSecurityPolicy, rec.Header().Get("Content-Security-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	SecurityHeaders(withoutCSP(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
