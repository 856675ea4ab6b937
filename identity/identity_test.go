package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/learngate/session"
)

func sessionWith(t *testing.T, access string) session.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if access != "" {
		req.AddCookie(&http.Cookie{Name: session.AccessTokenCookie, Value: access})
	}
	return session.NewStore(false).Jar(httptest.NewRecorder(), req).Session()
}

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return tok
}

func TestSubject_DecodesWithoutVerifying(t *testing.T) {
	tok := signed(t, jwt.RegisteredClaims{Subject: "user-123"})
	sub, err := Subject(sessionWith(t, tok))
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestSubject_AbsentToken(t *testing.T) {
	_, err := Subject(sessionWith(t, ""))
	assert.ErrorIs(t, err, ErrAbsentToken)
}

func TestSubject_MalformedToken(t *testing.T) {
	_, err := Subject(sessionWith(t, "not.a.jwt"))
	assert.ErrorIs(t, err, ErrUnreadableToken)
	assert.NotErrorIs(t, err, ErrAbsentToken)
}

func TestSubject_MissingSubject(t *testing.T) {
	tok := signed(t, jwt.RegisteredClaims{Issuer: "auth"})
	_, err := Subject(sessionWith(t, tok))
	assert.ErrorIs(t, err, ErrUnreadableToken)
}

func TestPrincipal_HasRole(t *testing.T) {
	p := Principal{ID: "u", Roles: []string{"STUDENT", "ADMIN"}}
	assert.True(t, p.HasRole("ADMIN"))
	assert.False(t, p.HasRole("admin"))
	assert.False(t, Principal{}.HasRole("ADMIN"))
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{ID: "u"})
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", p.ID)
}
