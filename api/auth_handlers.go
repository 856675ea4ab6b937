package api

import (
	"log/slog"
	"net/http"

	"github.com/jmcleod/learngate/audit"
	"github.com/jmcleod/learngate/auth"
	"github.com/jmcleod/learngate/gate"
	"github.com/jmcleod/learngate/messages"
	"github.com/jmcleod/learngate/session"
	"github.com/jmcleod/learngate/web"
)

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeJSON[auth.Credentials](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	creds.Email = auth.NormalizeEmail(creds.Email)
	if err := creds.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, auth.Result{Error: err.Error()})
		return
	}

	// Check rate limits before calling the auth service: IP, then email.
	clientIP := a.clientIP(r)
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.Failure(audit.LoginRateLimited, r, "ip rate limited", slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter, messages.Text(r.Context(), messages.TooManyAttempts))
		return
	}
	if blocked, retryAfter := a.emailLimiter.check(creds.Email); blocked {
		a.audit.Failure(audit.LoginRateLimited, r, "email rate limited", slog.String("email", creds.Email))
		writeRateLimited(w, retryAfter, messages.Text(r.Context(), messages.TooManyAttempts))
		return
	}

	jar := a.jar(w, r)
	res := a.svc.Auth.Login(r.Context(), jar, creds)
	if !res.OK {
		a.audit.Failure(audit.LoginFailure, r, res.Error, slog.String("email", creds.Email), slog.Bool("rejected", res.Rejected))
		if !res.Rejected {
			// An auth service outage says nothing about the credentials.
			writeJSON(w, http.StatusBadGateway, res)
			return
		}
		a.ipLimiter.record(clientIP)
		a.emailLimiter.record(creds.Email)
		writeJSON(w, http.StatusUnauthorized, res)
		return
	}

	a.ipLimiter.reset(clientIP)
	a.emailLimiter.reset(creds.Email)
	writeCSRFCookie(w, r)
	a.audit.Log(audit.LoginSuccess, r, slog.String("email", creds.Email))
	writeJSON(w, http.StatusOK, res)
}

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	clientIP := a.clientIP(r)
	if blocked, retryAfter := a.regIPLimiter.check(clientIP); blocked {
		a.audit.Failure(audit.LoginRateLimited, r, "registration rate limited", slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter, messages.Text(r.Context(), messages.TooManyAttempts))
		return
	}

	form, ok := decodeJSON[auth.RegisterForm](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	form.Email = auth.NormalizeEmail(form.Email)
	if err := form.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, auth.Result{Error: err.Error()})
		return
	}

	a.regIPLimiter.record(clientIP)
	res := a.svc.Auth.Register(r.Context(), a.jar(w, r), form)
	if !res.OK {
		a.audit.Failure(audit.RegisterFailure, r, res.Error, slog.String("email", form.Email))
		status := http.StatusBadRequest
		if !res.Rejected {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res)
		return
	}
	if res.SessionStarted {
		writeCSRFCookie(w, r)
	}
	a.audit.Log(audit.Register, r, slog.String("email", form.Email), slog.Bool("session_started", res.SessionStarted))
	writeJSON(w, http.StatusCreated, res)
}

// Logout handles POST /auth/logout. Local sign-out always succeeds; the
// caller is sent to the login page with 303 See Other.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	outcome := a.svc.Auth.Logout(r.Context(), a.jar(w, r))
	clearCSRFCookie(w, r)

	if outcome == auth.RevokeFailed {
		a.audit.Failure(audit.RevokeFailed, r, "refresh token not revoked")
	}
	a.audit.Log(audit.Logout, r, slog.String("outcome", outcome.String()))
	http.Redirect(w, r, a.loginPath, http.StatusSeeOther)
}

// LoginPage handles GET /auth/login.
func (a *API) LoginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, web.Login, web.PageData{
		Title: messages.Text(r.Context(), messages.SignInTitle),
	})
}

// ForbiddenPage handles GET /forbidden.
func (a *API) ForbiddenPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusForbidden, web.Forbidden, web.PageData{
		Title:   messages.Text(r.Context(), messages.ForbiddenTitle),
		Message: messages.Text(r.Context(), messages.ForbiddenText),
		Action:  messages.Text(r.Context(), messages.SignInTitle),
	})
}

func (a *API) render(w http.ResponseWriter, r *http.Request, status int, page string, data web.PageData) {
	data.Lang = messages.Language(r.Context()).String()
	if err := a.pages.Render(w, status, page, data); err != nil {
		a.logger.Error("rendering page failed", "page", page, "error", err)
		writeError(w, http.StatusInternalServerError, messages.Text(r.Context(), messages.Unexpected))
	}
}

// jar returns the request's cookie jar, creating one when the session
// middleware is not in the chain.
func (a *API) jar(w http.ResponseWriter, r *http.Request) *session.Jar {
	if jar, ok := session.JarFromContext(r.Context()); ok {
		return jar
	}
	return a.sessions.Jar(w, r)
}

// auditDecision records every gate decision.
func (a *API) auditDecision(r *http.Request, d gate.Decision) {
	var attrs []slog.Attr
	if d.Principal != nil {
		attrs = append(attrs, slog.String("subject", d.Principal.ID))
	}
	switch d.Outcome {
	case gate.Admit:
		a.audit.Log(audit.GateAdmit, r, attrs...)
	case gate.RedirectForbidden:
		a.audit.Failure(audit.GateForbidden, r, d.Reason, attrs...)
	default:
		a.audit.Failure(audit.GateRedirectLogin, r, d.Reason, slog.Bool("stale", d.Stale))
	}
}
