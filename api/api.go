// Package api is the backend-for-frontend HTTP surface. It owns the
// protected token cookies, proxies the backend services on behalf of the
// signed-in user and gates the admin area.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/learngate/audit"
	"github.com/jmcleod/learngate/auth"
	"github.com/jmcleod/learngate/catalog"
	"github.com/jmcleod/learngate/gate"
	"github.com/jmcleod/learngate/messages"
	"github.com/jmcleod/learngate/notifications"
	"github.com/jmcleod/learngate/session"
	"github.com/jmcleod/learngate/users"
	"github.com/jmcleod/learngate/web"
)

// DefaultProtectedPrefix is the path prefix gated when none is configured.
const DefaultProtectedPrefix = "/admin"

//go:embed openapi.yaml
var openapiSpec []byte

// Services are the backend clients the BFF calls.
type Services struct {
	Auth          *auth.Client
	Users         *users.Client
	Notifications *notifications.Client
	Catalog       *catalog.Client
}

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	svc       Services
	sessions  *session.Store
	gate      *gate.Gate
	gateOpts  []gate.Option
	protected []string
	pages     *web.Pages
	static    http.Handler

	audit          *audit.Logger
	logger         *slog.Logger
	emailLimiter   *backoffLimiter
	ipLimiter      *backoffLimiter
	regIPLimiter   *backoffLimiter
	trustedProxies []netip.Prefix
	secureCookies  bool
	loginPath      string
	forbiddenPath  string
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithAudit sets the audit logger. If not set, audit lines go to the
// structured logger only.
func WithAudit(l *audit.Logger) Option {
	return func(a *API) { a.audit = l }
}

// WithSecureCookies forces the Secure attribute on session cookies.
func WithSecureCookies(secure bool) Option {
	return func(a *API) { a.secureCookies = secure }
}

// WithProtectedPrefixes sets the path prefixes guarded by the gate.
func WithProtectedPrefixes(prefixes ...string) Option {
	return func(a *API) { a.protected = prefixes }
}

// WithGateOptions passes options through to the authorization gate.
func WithGateOptions(opts ...gate.Option) Option {
	return func(a *API) { a.gateOpts = append(a.gateOpts, opts...) }
}

// WithLoginPath sets where anonymous callers are sent.
func WithLoginPath(p string) Option {
	return func(a *API) { a.loginPath = p }
}

// WithForbiddenPath sets where callers without the required role are sent.
func WithForbiddenPath(p string) Option {
	return func(a *API) { a.forbiddenPath = p }
}

// WithTrustedProxies configures which reverse proxies may set client IP
// headers.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = prefixes }
}

// New creates a new API instance. It fails only if the embedded web assets
// cannot be loaded.
func New(svc Services, opts ...Option) (*API, error) {
	a := &API{
		svc:           svc,
		protected:     []string{DefaultProtectedPrefix},
		emailLimiter:  newLoginRateLimiter(),
		ipLimiter:     newIPRateLimiter(),
		regIPLimiter:  newRegistrationIPLimiter(),
		loginPath:     gate.DefaultLoginPath,
		forbiddenPath: gate.DefaultForbiddenPath,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if a.audit == nil {
		a.audit = audit.NewLogger(a.logger)
	}
	a.logger = a.logger.With("component", "api")
	a.sessions = session.NewStore(a.secureCookies)

	gateOpts := append([]gate.Option{
		gate.WithLogger(a.logger),
		gate.WithLoginPath(a.loginPath),
		gate.WithForbiddenPath(a.forbiddenPath),
		gate.WithObserver(a.auditDecision),
	}, a.gateOpts...)
	// Without a user service every gated request fails closed.
	var lookup gate.UserLookup = unavailableUsers{}
	if svc.Users != nil {
		lookup = svc.Users
	}
	a.gate = gate.New(lookup, gateOpts...)

	var err error
	if a.pages, err = web.NewPages(); err != nil {
		return nil, err
	}
	if a.static, err = web.Static(); err != nil {
		return nil, err
	}
	return a, nil
}

// Router returns a chi.Router with every route and the cross-cutting
// middleware mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.sessions.Middleware)
	r.Use(messages.Middleware)
	// A forged logout can only sign the victim out, and local sign-out must
	// never be refused.
	r.Use(CSRFMiddleware("/auth/login", "/auth/register", "/auth/logout"))
	r.Use(a.gate.Guard(a.protected...))

	r.Get("/health", a.Health)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.With(withoutCSP).Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))
	r.Handle("/static/*", a.static)

	r.Get("/auth/login", a.LoginPage)
	r.Get("/forbidden", a.ForbiddenPage)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/register", a.Register)
	r.Post("/auth/logout", a.Logout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/profile", a.Profile)
		r.Get("/notifications", a.ListNotifications)
		r.Put("/notifications/{id}/read", a.MarkNotificationRead)
		r.Get("/courses", a.ListCourses)
		r.Patch("/courses/{id}/status", a.ChangeCourseStatus)
		r.Get("/groups", a.ListGroups)
		r.Patch("/groups/{id}/status", a.ChangeGroupStatus)
	})

	r.Get("/admin", a.admitted(a.AdminHome))
	r.Get("/admin/stats", a.admitted(a.AdminStats))
	r.Get("/admin/users", a.admitted(a.AdminFindUser))

	return r
}

// SweepLimiters drops expired rate-limit records. Call it periodically.
func (a *API) SweepLimiters() {
	a.emailLimiter.sweep()
	a.ipLimiter.sweep()
	a.regIPLimiter.sweep()
}
