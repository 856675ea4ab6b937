package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/jmcleod/learngate/audit"
	"github.com/jmcleod/learngate/auth"
	"github.com/jmcleod/learngate/catalog"
	"github.com/jmcleod/learngate/identity"
	"github.com/jmcleod/learngate/messages"
	"github.com/jmcleod/learngate/notifications"
	"github.com/jmcleod/learngate/session"
	"github.com/jmcleod/learngate/web"
)

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Profile handles GET /api/v1/profile. The caller's id is read from the
// access token itself; the user service supplies the rest.
func (a *API) Profile(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	sub, err := identity.Subject(s)
	switch {
	case errors.Is(err, identity.ErrAbsentToken):
		writeError(w, http.StatusUnauthorized, messages.Text(r.Context(), messages.SignInRequired))
		return
	case errors.Is(err, identity.ErrUnreadableToken):
		a.jar(w, r).Clear()
		clearCSRFCookie(w, r)
		a.audit.Failure(audit.SessionCleared, r, "unreadable access token")
		writeError(w, http.StatusUnauthorized, messages.Text(r.Context(), messages.SignInRequired))
		return
	}

	user, err := a.svc.Users.ByID(r.Context(), s.AccessToken(), sub)
	if err != nil {
		a.logger.Warn("profile lookup failed", "subject", sub, "error", err)
		writeUpstreamError(w, r, err, messages.UserFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListNotifications handles GET /api/v1/notifications.
func (a *API) ListNotifications(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}
	items, err := a.svc.Notifications.List(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, r, err, messages.NotificationsFailed)
		return
	}

	page, meta := paginate(r, items)
	writeJSON(w, http.StatusOK, NotificationsResponse{
		Items:          page,
		Unread:         notifications.UnreadCount(items),
		PaginationMeta: meta,
	})
}

// MarkNotificationRead handles PUT /api/v1/notifications/{id}/read. It is
// idempotent: marking an already-read notification succeeds again.
func (a *API) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	n, err := a.svc.Notifications.MarkRead(r.Context(), token, id)
	if err != nil {
		a.mutationFailed(r, "notification", id, err)
		writeUpstreamError(w, r, err, messages.MarkReadFailed)
		return
	}
	if n == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ListCourses handles GET /api/v1/courses.
func (a *API) ListCourses(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}
	items, err := a.svc.Catalog.Courses(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, r, err, messages.Unexpected)
		return
	}
	page, meta := paginate(r, items)
	writeJSON(w, http.StatusOK, CoursesResponse{Items: page, PaginationMeta: meta})
}

// ChangeCourseStatus handles PATCH /api/v1/courses/{id}/status.
func (a *API) ChangeCourseStatus(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}
	status, ok := decodeStatus(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	c, err := a.svc.Catalog.ChangeCourseStatus(r.Context(), token, id, status)
	if err != nil {
		a.mutationFailed(r, "course", id, err)
		writeUpstreamError(w, r, err, messages.StatusChangeFailed)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListGroups handles GET /api/v1/groups.
func (a *API) ListGroups(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}
	items, err := a.svc.Catalog.Groups(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, r, err, messages.Unexpected)
		return
	}
	page, meta := paginate(r, items)
	writeJSON(w, http.StatusOK, GroupsResponse{Items: page, PaginationMeta: meta})
}

// ChangeGroupStatus handles PATCH /api/v1/groups/{id}/status.
func (a *API) ChangeGroupStatus(w http.ResponseWriter, r *http.Request) {
	token, ok := bearer(w, r)
	if !ok {
		return
	}
	status, ok := decodeStatus(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	g, err := a.svc.Catalog.ChangeGroupStatus(r.Context(), token, id, status)
	if err != nil {
		a.mutationFailed(r, "group", id, err)
		writeUpstreamError(w, r, err, messages.StatusChangeFailed)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// AdminHome handles GET /admin.
func (a *API) AdminHome(w http.ResponseWriter, r *http.Request) {
	p, _ := identity.PrincipalFromContext(r.Context())
	token := csrfToken(r)
	if token == "" {
		token = writeCSRFCookie(w, r)
	}
	a.render(w, r, http.StatusOK, web.Admin, web.PageData{
		Title:     messages.Text(r.Context(), messages.AdminTitle),
		Action:    messages.Text(r.Context(), messages.SignOut),
		CSRFToken: token,
		Principal: p,
	})
}

// AdminStats handles GET /admin/stats. Courses and groups are fetched
// concurrently.
func (a *API) AdminStats(w http.ResponseWriter, r *http.Request) {
	p, _ := identity.PrincipalFromContext(r.Context())
	token := session.FromContext(r.Context()).AccessToken()

	var (
		courses []catalog.Course
		groups  []catalog.Group
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		courses, err = a.svc.Catalog.Courses(ctx, token)
		return err
	})
	g.Go(func() (err error) {
		groups, err = a.svc.Catalog.Groups(ctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		writeUpstreamError(w, r, err, messages.Unexpected)
		return
	}

	writeJSON(w, http.StatusOK, AdminStatsResponse{
		Stats:     catalog.Summarize(courses, groups),
		Principal: p,
	})
}

// AdminFindUser handles GET /admin/users?email=.
func (a *API) AdminFindUser(w http.ResponseWriter, r *http.Request) {
	email := auth.NormalizeEmail(r.URL.Query().Get("email"))
	if err := auth.ValidateEmail(email); err != nil {
		writeError(w, http.StatusBadRequest, "email: "+err.Error())
		return
	}
	token := session.FromContext(r.Context()).AccessToken()
	user, err := a.svc.Users.ByEmail(r.Context(), token, email)
	if err != nil {
		writeUpstreamError(w, r, err, messages.UserFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func decodeStatus(w http.ResponseWriter, r *http.Request) (catalog.Status, bool) {
	req, ok := decodeJSON[ChangeStatusRequest](w, r, maxSmallBodySize)
	if !ok {
		return "", false
	}
	status, err := catalog.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return status, true
}

func (a *API) mutationFailed(r *http.Request, kind, id string, err error) {
	a.audit.Failure(audit.MutationFailed, r, err.Error(),
		slog.String("resource", kind), slog.String("resource_id", id))
}
