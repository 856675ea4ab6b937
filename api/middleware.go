package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmcleod/learngate/identity"
	"github.com/jmcleod/learngate/internal/httpx"
	"github.com/jmcleod/learngate/messages"
	"github.com/jmcleod/learngate/session"
	"github.com/jmcleod/learngate/users"
)

// unavailableUsers is the gate's lookup when no user service is configured.
type unavailableUsers struct{}

func (unavailableUsers) Me(context.Context, string) (*users.User, error) {
	return nil, fmt.Errorf("%w: user service not configured", httpx.ErrUnreachable)
}

// admitted runs h with the gate's principal. Routes outside the configured
// protected prefixes are gated here instead, so admin handlers never run
// unchecked.
func (a *API) admitted(h http.HandlerFunc) http.HandlerFunc {
	gated := a.gate.Middleware(h)
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.PrincipalFromContext(r.Context()); ok {
			h(w, r)
			return
		}
		gated.ServeHTTP(w, r)
	}
}

// bearer returns the caller's access token, writing a 401 when there is
// none.
func bearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	s := session.FromContext(r.Context())
	if !s.Authenticated() {
		writeError(w, http.StatusUnauthorized, messages.Text(r.Context(), messages.SignInRequired))
		return "", false
	}
	return s.AccessToken(), true
}
