// Package auth is the client for the auth service. It issues login,
// registration and logout requests and keeps the resulting token pair in
// the session jar.
//
// Operations return a Result instead of an error: callers always get a
// structured outcome with a user-facing message, never a failure escaping
// the boundary.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jmcleod/learngate/internal/httpx"
	"github.com/jmcleod/learngate/messages"
	"github.com/jmcleod/learngate/session"
)

// DefaultRevokeTimeout bounds the revoke call made during logout.
const DefaultRevokeTimeout = 5 * time.Second

// Result is the tagged outcome of Login and Register.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	// SessionStarted is true when a token pair was stored. A successful
	// registration may leave it false ("registered, not signed in").
	SessionStarted bool `json:"sessionStarted,omitempty"`
	// Rejected is true when the failure was a verdict on the input (invalid
	// form or a 4xx from the auth service), as opposed to an outage.
	Rejected bool `json:"-"`
}

func failure(msg string) Result {
	return Result{OK: false, Error: msg}
}

func rejection(msg string) Result {
	return Result{OK: false, Error: msg, Rejected: true}
}

// upstreamFailure classifies err from the auth service.
func upstreamFailure(ctx context.Context, err error, fallback messages.Key) Result {
	res := failure(failureMessage(ctx, err, fallback))
	if status, ok := httpx.StatusOf(err); ok && status >= 400 && status < 500 {
		res.Rejected = true
	}
	return res
}

// LogoutOutcome reports what happened to the remote refresh token. Local
// cleanup happens in every case.
type LogoutOutcome int

const (
	// RevokeSkipped means no refresh token was present.
	RevokeSkipped LogoutOutcome = iota
	// Revoked means the auth service invalidated the refresh token.
	Revoked
	// RevokeFailed means the auth service could not be reached or refused.
	RevokeFailed
)

func (o LogoutOutcome) String() string {
	switch o {
	case Revoked:
		return "revoked"
	case RevokeFailed:
		return "revoke_failed"
	default:
		return "revoke_skipped"
	}
}

type revokeRequest struct {
	OldRefreshToken string `json:"oldRefreshToken"`
}

// Client talks to the auth service.
type Client struct {
	api           *httpx.Client
	logger        *slog.Logger
	revokeTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRevokeTimeout bounds the logout revoke call. Zero disables the bound.
func WithRevokeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.revokeTimeout = d
	}
}

// NewClient returns a Client for the auth service at baseURL.
func NewClient(baseURL string, hc *http.Client, opts ...Option) *Client {
	c := &Client{
		api:           httpx.New(baseURL, hc),
		revokeTimeout: DefaultRevokeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	c.logger = c.logger.With("component", "auth")
	return c
}

// Login exchanges credentials for a token pair and stores it. On any
// failure the jar is left untouched.
func (c *Client) Login(ctx context.Context, jar *session.Jar, creds Credentials) Result {
	creds.Email = NormalizeEmail(creds.Email)
	if err := creds.Validate(); err != nil {
		return rejection(err.Error())
	}

	var pair session.TokenPair
	if err := c.api.Do(ctx, http.MethodPost, "/login", creds, &pair); err != nil {
		c.logger.Warn("login failed", "error", err)
		return upstreamFailure(ctx, err, messages.LoginFailed)
	}
	if !pair.Complete() {
		c.logger.Error("login response without a complete token pair")
		return failure(messages.Text(ctx, messages.Unexpected))
	}

	jar.Save(pair)
	return Result{OK: true, SessionStarted: true}
}

// Register creates an account. When the auth service answers with a full
// token pair the caller is signed in as well.
func (c *Client) Register(ctx context.Context, jar *session.Jar, form RegisterForm) Result {
	form.Email = NormalizeEmail(form.Email)
	if err := form.Validate(); err != nil {
		return rejection(err.Error())
	}

	var pair session.TokenPair
	if err := c.api.Do(ctx, http.MethodPost, "/register", form, &pair); err != nil {
		c.logger.Warn("registration failed", "error", err)
		return upstreamFailure(ctx, err, messages.RegisterFailed)
	}
	if !pair.Complete() {
		return Result{OK: true}
	}

	jar.Save(pair)
	return Result{OK: true, SessionStarted: true}
}

// Logout revokes the refresh token remotely when one is present, then
// deletes both cookies unconditionally. It is safe without a session.
func (c *Client) Logout(ctx context.Context, jar *session.Jar) LogoutOutcome {
	outcome := RevokeSkipped
	if refresh, ok := jar.Get(session.RefreshTokenCookie); ok {
		outcome = c.revoke(ctx, refresh)
	}
	jar.Clear()
	return outcome
}

func (c *Client) revoke(ctx context.Context, refresh string) LogoutOutcome {
	if c.revokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.revokeTimeout)
		defer cancel()
	}
	err := c.api.Do(ctx, http.MethodPost, "/logout", revokeRequest{OldRefreshToken: refresh}, nil)
	if err != nil {
		if errors.Is(err, httpx.ErrUnreachable) {
			c.logger.Warn("could not reach auth service to revoke refresh token", "error", err)
		} else {
			c.logger.Warn("failed to revoke refresh token", "error", err)
		}
		return RevokeFailed
	}
	c.logger.Info("refresh token revoked")
	return Revoked
}

// failureMessage prefers the service's own message, then the fallback for
// the operation; transport failures get the generic text.
func failureMessage(ctx context.Context, err error, fallback messages.Key) string {
	if _, ok := httpx.StatusOf(err); ok {
		if msg := httpx.MessageOf(err); msg != "" {
			return msg
		}
		return messages.Text(ctx, fallback)
	}
	return messages.Text(ctx, messages.Unexpected)
}
