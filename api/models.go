package api

import (
	"github.com/jmcleod/learngate/catalog"
	"github.com/jmcleod/learngate/identity"
	"github.com/jmcleod/learngate/notifications"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// NotificationsResponse is returned from GET /api/v1/notifications.
type NotificationsResponse struct {
	Items  []notifications.Notification `json:"items"`
	Unread int                          `json:"unread"`
	PaginationMeta
}

// CoursesResponse is returned from GET /api/v1/courses.
type CoursesResponse struct {
	Items []catalog.Course `json:"items"`
	PaginationMeta
}

// GroupsResponse is returned from GET /api/v1/groups.
type GroupsResponse struct {
	Items []catalog.Group `json:"items"`
	PaginationMeta
}

// ChangeStatusRequest is the body of the status PATCH endpoints.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// AdminStatsResponse is returned from GET /admin/stats.
type AdminStatsResponse struct {
	catalog.Stats
	Principal identity.Principal `json:"principal"`
}
