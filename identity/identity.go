// Package identity resolves who the caller is from the protected session.
//
// Subject decodes the access token's payload WITHOUT checking its signature.
// That is only acceptable because the token arrived over the HttpOnly cookie
// channel, which is why the function takes a session.Session and not a
// string. It must never be used as an authorization check by itself; the
// gate asks the user service instead.
package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/learngate/session"
)

var (
	// ErrAbsentToken means there is no session; recover by prompting login.
	ErrAbsentToken = errors.New("no access token in session")
	// ErrUnreadableToken means a token is present but cannot be decoded;
	// recover by clearing the session.
	ErrUnreadableToken = errors.New("unreadable access token")
)

var parser = jwt.NewParser()

// Subject returns the sub claim of the session's access token.
func Subject(s session.Session) (string, error) {
	if !s.Authenticated() {
		return "", ErrAbsentToken
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(s.AccessToken(), claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnreadableToken)
	}
	return sub, nil
}

// Principal is the resolved identity and role set for one request
// evaluation. It is recomputed on every gated request and never cached.
type Principal struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// HasRole reports whether role is in the principal's role set.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

type contextKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext returns the principal admitted for this request.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
