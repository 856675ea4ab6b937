// Package audit records security-relevant events of the BFF: sign-ins,
// sign-outs, gate decisions and failed mutations. Every event is written as a
// structured slog line and, when configured, persisted to a storage
// repository, counted for spike alerts and forwarded to a webhook.
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Event identifies the type of security-relevant action being logged.
type Event string

const (
	LoginSuccess      Event = "login_success"
	LoginFailure      Event = "login_failure"
	LoginRateLimited  Event = "login_rate_limited"
	Register          Event = "register"
	RegisterFailure   Event = "register_failure"
	Logout            Event = "logout"
	RevokeFailed      Event = "revoke_failed"
	GateAdmit         Event = "gate_admit"
	GateRedirectLogin Event = "gate_redirect_login"
	GateForbidden     Event = "gate_forbidden"
	SessionCleared    Event = "session_cleared"
	MutationFailed    Event = "mutation_failed"
)

// Logger wraps slog.Logger for structured audit logging.
type Logger struct {
	logger  *slog.Logger
	metrics *metricsCollector
	store   *Store
	webhook *Webhook
}

// Option configures a Logger.
type Option func(*Logger)

// WithStore persists every entry to s.
func WithStore(s *Store) Option {
	return func(l *Logger) { l.store = s }
}

// WithAlerts enables spike detection; fn is called for each alert.
func WithAlerts(fn AlertFunc) Option {
	return func(l *Logger) { l.metrics = newMetricsCollector(fn) }
}

// WithWebhook forwards every entry to w.
func WithWebhook(w *Webhook) Option {
	return func(l *Logger) { l.webhook = w }
}

// NewLogger returns a Logger writing to logger, or to a JSON handler on
// stderr when logger is nil.
func NewLogger(logger *slog.Logger, opts ...Option) *Logger {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	l := &Logger{logger: logger.With("component", "audit")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log writes a structured audit entry for r.
func (l *Logger) Log(event Event, r *http.Request, attrs ...slog.Attr) {
	now := time.Now().UTC()
	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("path", r.URL.Path),
		slog.String("timestamp", now.Format(time.RFC3339)),
	}
	base = append(base, attrs...)
	l.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", base...)

	if l.metrics != nil {
		l.metrics.recordEvent(event)
	}
	if l.store == nil && l.webhook == nil {
		return
	}

	entry := Entry{
		Event:      event,
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
		CreatedAt:  now,
		Attrs:      stringAttrs(attrs),
	}
	if l.store != nil {
		if err := l.store.Append(&entry); err != nil {
			l.logger.Warn("persisting audit entry failed", "event", string(event), "error", err)
		}
	}
	if l.webhook != nil {
		l.webhook.Enqueue(entry)
	}
}

// Failure logs event with a reason attribute.
func (l *Logger) Failure(event Event, r *http.Request, reason string, extra ...slog.Attr) {
	l.Log(event, r, append([]slog.Attr{slog.String("reason", reason)}, extra...)...)
}

// Close drains the webhook queue, if any.
func (l *Logger) Close(ctx context.Context) {
	if l.webhook != nil {
		l.webhook.Close(ctx)
	}
}

func stringAttrs(attrs []slog.Attr) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value.String()
	}
	return m
}
