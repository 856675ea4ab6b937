package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/jmcleod/learngate/messages"
	"github.com/jmcleod/learngate/session"
)

type fakeAuthService struct {
	mu          sync.Mutex
	revoked     []string
	logins      int
	logoutDelay time.Duration
	logoutFails bool
	noTokens    bool
}

func (f *fakeAuthService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		var creds Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correct-password" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid email or password"}`))
			return
		}
		json.NewEncoder(w).Encode(session.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})
	})
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		if f.noTokens {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"ok":true}`))
			return
		}
		json.NewEncoder(w).Encode(session.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"})
	})
	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		if f.logoutDelay > 0 {
			select {
			case <-time.After(f.logoutDelay):
			case <-r.Context().Done():
				return
			}
		}
		var body revokeRequest
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.revoked = append(f.revoked, body.OldRefreshToken)
		f.mu.Unlock()
		if f.logoutFails {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"db down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJar(cookies ...*http.Cookie) (*session.Jar, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return session.NewStore(false).Jar(rec, req), rec
}

func setup(t *testing.T, f *fakeAuthService, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestLogin_InvalidCredentialsLeaveStoreUntouched(t *testing.T) {
	c := setup(t, &fakeAuthService{})
	jar, rec := newJar()

	res := c.Login(context.Background(), jar, Credentials{Email: "ann@example.com", Password: "wrong"})

	assert.False(t, res.OK)
	assert.True(t, res.Rejected)
	assert.Equal(t, "Invalid email or password", res.Error)
	assert.Empty(t, rec.Result().Cookies())
	assert.False(t, jar.Session().Authenticated())
}

func TestLogin_SuccessWritesExactlyTwoHttpOnlyCookies(t *testing.T) {
	c := setup(t, &fakeAuthService{})
	jar, rec := newJar()

	res := c.Login(context.Background(), jar, Credentials{Email: " Ann@Example.com ", Password: "correct-password"})

	require.True(t, res.OK, res.Error)
	assert.True(t, res.SessionStarted)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	names := map[string]bool{}
	for _, ck := range cookies {
		names[ck.Name] = true
		assert.True(t, ck.HttpOnly, ck.Name)
	}
	assert.True(t, names[session.AccessTokenCookie])
	assert.True(t, names[session.RefreshTokenCookie])
	assert.Equal(t, "access-1", jar.Session().AccessToken())
}

func TestLogin_ValidationFailsBeforeNetwork(t *testing.T) {
	f := &fakeAuthService{}
	c := setup(t, f)
	jar, rec := newJar()

	res := c.Login(context.Background(), jar, Credentials{Email: "not-an-email", Password: "x"})

	assert.False(t, res.OK)
	assert.True(t, res.Rejected)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, rec.Result().Cookies())
	assert.Zero(t, f.logins)
}

func TestLogin_UnreachableUsesLocalizedFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewClient(url, nil, WithLogger(quietLogger()))
	jar, rec := newJar()

	ctx := messages.WithLanguage(context.Background(), language.Russian)
	res := c.Login(ctx, jar, Credentials{Email: "ann@example.com", Password: "correct-password"})

	assert.False(t, res.OK)
	assert.False(t, res.Rejected)
	assert.Equal(t, "Произошла непредвиденная ошибка", res.Error)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_NonJSONErrorUsesOperationFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html><body><h1>502 Bad Gateway</h1><hr>nginx/1.25.3 internal-host-10.0.0.7</body></html>"))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, nil, WithLogger(quietLogger()))
	jar, rec := newJar()

	res := c.Login(context.Background(), jar, Credentials{Email: "ann@example.com", Password: "p"})
	assert.False(t, res.OK)
	assert.False(t, res.Rejected)
	assert.Equal(t, "Could not sign in", res.Error)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRegister_ConflictIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"email already registered"}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, nil, WithLogger(quietLogger()))
	jar, _ := newJar()

	res := c.Register(context.Background(), jar, RegisterForm{
		FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "long-enough",
	})
	assert.False(t, res.OK)
	assert.True(t, res.Rejected)
	assert.Equal(t, "email already registered", res.Error)
}

func TestRegister_StoresPairWhenPresent(t *testing.T) {
	c := setup(t, &fakeAuthService{})
	jar, rec := newJar()

	res := c.Register(context.Background(), jar, RegisterForm{
		FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "long-enough",
	})

	require.True(t, res.OK, res.Error)
	assert.True(t, res.SessionStarted)
	assert.Len(t, rec.Result().Cookies(), 2)
}

func TestRegister_ToleratesMissingTokens(t *testing.T) {
	c := setup(t, &fakeAuthService{noTokens: true})
	jar, rec := newJar()

	res := c.Register(context.Background(), jar, RegisterForm{
		FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Password: "long-enough",
	})

	assert.True(t, res.OK)
	assert.False(t, res.SessionStarted)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRegister_Validation(t *testing.T) {
	c := setup(t, &fakeAuthService{})
	jar, _ := newJar()
	res := c.Register(context.Background(), jar, RegisterForm{Email: "ann@example.com", Password: "short"})
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func sessionCookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: session.AccessTokenCookie, Value: "access-1"},
		{Name: session.RefreshTokenCookie, Value: "refresh-1"},
	}
}

func assertCleared(t *testing.T, jar *session.Jar, rec *httptest.ResponseRecorder) {
	t.Helper()
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	for _, ck := range cookies {
		assert.Equal(t, -1, ck.MaxAge, ck.Name)
	}
	assert.False(t, jar.Session().Authenticated())
}

func TestLogout_RevokesThenClears(t *testing.T) {
	f := &fakeAuthService{}
	c := setup(t, f)
	jar, rec := newJar(sessionCookies()...)

	outcome := c.Logout(context.Background(), jar)

	assert.Equal(t, Revoked, outcome)
	assert.Equal(t, []string{"refresh-1"}, f.revoked)
	assertCleared(t, jar, rec)
}

func TestLogout_RevokeFailureStillClears(t *testing.T) {
	c := setup(t, &fakeAuthService{logoutFails: true})
	jar, rec := newJar(sessionCookies()...)

	assert.Equal(t, RevokeFailed, c.Logout(context.Background(), jar))
	assertCleared(t, jar, rec)
}

func TestLogout_UnreachableStillClears(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := NewClient(url, nil, WithLogger(quietLogger()))
	jar, rec := newJar(sessionCookies()...)

	assert.Equal(t, RevokeFailed, c.Logout(context.Background(), jar))
	assertCleared(t, jar, rec)
}

func TestLogout_TimeoutStillClears(t *testing.T) {
	c := setup(t, &fakeAuthService{logoutDelay: time.Second}, WithRevokeTimeout(20*time.Millisecond))
	jar, rec := newJar(sessionCookies()...)

	start := time.Now()
	assert.Equal(t, RevokeFailed, c.Logout(context.Background(), jar))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assertCleared(t, jar, rec)
}

func TestLogout_NoSessionIsSafe(t *testing.T) {
	f := &fakeAuthService{}
	c := setup(t, f)
	jar, rec := newJar()

	assert.Equal(t, RevokeSkipped, c.Logout(context.Background(), jar))
	assert.Empty(t, f.revoked)
	assertCleared(t, jar, rec)
}

func TestLogoutOutcomeString(t *testing.T) {
	assert.Equal(t, "revoked", Revoked.String())
	assert.Equal(t, "revoke_failed", RevokeFailed.String())
	assert.Equal(t, "revoke_skipped", RevokeSkipped.String())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", NormalizeEmail("  ANN@Example.COM "))
	assert.Equal(t, "ann@example.com", NormalizeEmail("ａｎｎ@example.com"))
}
