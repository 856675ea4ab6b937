// Package gate is the per-request authorization gate for protected areas.
//
// Decide is a pure decision over the request's session: it asks the user
// service who the caller is and admits only when that answer is a 2xx
// containing the required role. Every ambiguous failure (no token, non-2xx,
// transport error, undecodable body) fails closed to a login redirect.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/jmcleod/learngate/identity"
	"github.com/jmcleod/learngate/internal/httpx"
	"github.com/jmcleod/learngate/session"
	"github.com/jmcleod/learngate/users"
)

// Outcome is one of the three gate results.
type Outcome int

const (
	RedirectLogin Outcome = iota
	RedirectForbidden
	Admit
)

func (o Outcome) String() string {
	switch o {
	case Admit:
		return "admit"
	case RedirectForbidden:
		return "redirect_forbidden"
	default:
		return "redirect_login"
	}
}

// Decision is the result of evaluating one request.
type Decision struct {
	Outcome Outcome
	Reason  string
	// Principal is set when the user service answered 2xx.
	Principal *identity.Principal
	// Stale is true when the token was definitively rejected: the user
	// service answered 401/403.
	Stale bool
}

// UserLookup is the slice of the user service the gate depends on.
type UserLookup interface {
	Me(ctx context.Context, token string) (*users.User, error)
}

// Observer is notified of every decision, e.g. for auditing.
type Observer func(r *http.Request, d Decision)

const (
	DefaultRequiredRole  = "ADMIN"
	DefaultLoginPath     = "/auth/login"
	DefaultForbiddenPath = "/forbidden"
)

// Gate evaluates protected requests.
type Gate struct {
	users         UserLookup
	requiredRole  string
	loginPath     string
	forbiddenPath string
	clearStale    bool
	logger        *slog.Logger
	observer      Observer
}

// Option configures a Gate.
type Option func(*Gate)

func WithRequiredRole(role string) Option { return func(g *Gate) { g.requiredRole = role } }
func WithLoginPath(p string) Option       { return func(g *Gate) { g.loginPath = p } }
func WithForbiddenPath(p string) Option   { return func(g *Gate) { g.forbiddenPath = p } }
func WithLogger(l *slog.Logger) Option    { return func(g *Gate) { g.logger = l } }
func WithObserver(o Observer) Option      { return func(g *Gate) { g.observer = o } }

// WithClearStaleSession controls whether a definitively rejected session
// is cleared when the gate redirects to login.
func WithClearStaleSession(clear bool) Option {
	return func(g *Gate) { g.clearStale = clear }
}

// New returns a Gate backed by lookup.
func New(lookup UserLookup, opts ...Option) *Gate {
	g := &Gate{
		users:         lookup,
		requiredRole:  DefaultRequiredRole,
		loginPath:     DefaultLoginPath,
		forbiddenPath: DefaultForbiddenPath,
		clearStale:    true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	g.logger = g.logger.With("component", "gate")
	return g
}

// Decide evaluates s. It has no side effects and may be re-run freely.
func (g *Gate) Decide(ctx context.Context, s session.Session) Decision {
	if !s.Authenticated() {
		return Decision{Outcome: RedirectLogin, Reason: "no access token"}
	}

	user, err := g.users.Me(ctx, s.AccessToken())
	if err != nil {
		d := Decision{Outcome: RedirectLogin, Reason: "role check failed"}
		if status, ok := httpx.StatusOf(err); ok {
			d.Stale = status == http.StatusUnauthorized || status == http.StatusForbidden
		} else if errors.Is(err, httpx.ErrUnreachable) {
			d.Reason = "user service unreachable"
		}
		g.logger.Warn("role check failed", "error", err, "stale", d.Stale)
		return d
	}

	p := identity.Principal{ID: user.ID, Roles: user.Role}
	if !p.HasRole(g.requiredRole) {
		return Decision{Outcome: RedirectForbidden, Reason: "missing role " + g.requiredRole, Principal: &p}
	}
	return Decision{Outcome: Admit, Principal: &p}
}

// Middleware gates every request passing through it. It needs the session
// middleware upstream; without it every request is anonymous.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r.Context(), session.FromContext(r.Context()))
		if g.observer != nil {
			g.observer(r, d)
		}

		switch d.Outcome {
		case Admit:
			next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(r.Context(), *d.Principal)))
		case RedirectForbidden:
			redirect(w, r, g.forbiddenPath)
		default:
			if d.Stale && g.clearStale {
				if jar, ok := session.JarFromContext(r.Context()); ok {
					jar.Clear()
				}
			}
			redirect(w, r, g.loginTarget(r))
		}
	})
}

// Guard returns middleware that runs the gate only for paths equal to or
// below one of prefixes and passes every other request through untouched.
func (g *Gate) Guard(prefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gated := g.Middleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Matches(r.URL.Path, prefixes...) {
				gated.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Matches reports whether path is prefix itself or lies below it.
func Matches(path string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			return true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// loginTarget is the login path, carrying the original location as next
// for GET and HEAD so the caller lands back where it started. Other methods
// cannot be replayed by a redirect and get the bare path.
func (g *Gate) loginTarget(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return g.loginPath
	}
	return g.loginPath + "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	status := http.StatusSeeOther
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		status = http.StatusFound
	}
	http.Redirect(w, r, target, status)
}
