// Package catalog is the client for the course and group services.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jmcleod/learngate/internal/httpx"
)

// Status is the lifecycle state shared by courses and groups.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInArchive  Status = "IN_ARCHIVE"
)

var statusOrder = []Status{StatusCreated, StatusInProgress, StatusInArchive}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusInProgress, StatusInArchive:
		return true
	}
	return false
}

// Next returns the status that follows s, wrapping from archived back to
// created. Unknown statuses advance to created.
func (s Status) Next() Status {
	for i, st := range statusOrder {
		if st == s {
			return statusOrder[(i+1)%len(statusOrder)]
		}
	}
	return StatusCreated
}

// ParseStatus validates a wire value.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

type Course struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Students    []string `json:"students"`
	Duration    int      `json:"duration"`
	Status      Status   `json:"status"`
}

type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Students    []string `json:"students"`
	Duration    int      `json:"duration"`
	Status      Status   `json:"status"`
}

func CourseKey(c Course) string { return c.ID }
func GroupKey(g Group) string   { return g.ID }

// WithStatus returns a mutation that sets the status of a course.
func WithStatus(s Status) func(Course) Course {
	return func(c Course) Course {
		c.Status = s
		return c
	}
}

type changeStatusRequest struct {
	Status Status `json:"status"`
}

// Client talks to the course and group services, which live on separate
// base URLs.
type Client struct {
	courses *httpx.Client
	groups  *httpx.Client
}

// NewClient returns a Client. Either base URL may be empty when the
// corresponding service is not deployed; calls to it then fail as
// unreachable.
func NewClient(coursesURL, groupsURL string, hc *http.Client) *Client {
	return &Client{
		courses: httpx.New(coursesURL, hc),
		groups:  httpx.New(groupsURL, hc),
	}
}

// Courses lists every course.
func (c *Client) Courses(ctx context.Context, token string) ([]Course, error) {
	var out []Course
	if err := c.courses.Do(ctx, http.MethodGet, "/api/v1/courses", nil, &out, httpx.Bearer(token)); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeCourseStatus moves a course to status s and returns the updated
// course.
func (c *Client) ChangeCourseStatus(ctx context.Context, token, id string, s Status) (*Course, error) {
	var out Course
	path := "/api/v1/courses/" + url.PathEscape(id) + "/status"
	if err := c.courses.Do(ctx, http.MethodPatch, path, changeStatusRequest{Status: s}, &out, httpx.Bearer(token)); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID, out.Status = id, s
	}
	return &out, nil
}

// Groups lists every group.
func (c *Client) Groups(ctx context.Context, token string) ([]Group, error) {
	var out []Group
	if err := c.groups.Do(ctx, http.MethodGet, "/api/groups", nil, &out, httpx.Bearer(token)); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeGroupStatus moves a group to status s and returns the updated group.
func (c *Client) ChangeGroupStatus(ctx context.Context, token, id string, s Status) (*Group, error) {
	var out Group
	path := "/api/groups/" + url.PathEscape(id) + "/status"
	if err := c.groups.Do(ctx, http.MethodPatch, path, changeStatusRequest{Status: s}, &out, httpx.Bearer(token)); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID, out.Status = id, s
	}
	return &out, nil
}

// Stats summarises the catalog for the admin dashboard.
type Stats struct {
	TotalCourses     int            `json:"totalCourses"`
	TotalGroups      int            `json:"totalGroups"`
	TotalEnrollments int            `json:"totalEnrollments"`
	ByStatus         map[Status]int `json:"coursesByStatus"`
}

// Summarize computes Stats from a course and group listing.
func Summarize(courses []Course, groups []Group) Stats {
	st := Stats{
		TotalCourses: len(courses),
		TotalGroups:  len(groups),
		ByStatus:     make(map[Status]int),
	}
	for _, c := range courses {
		st.ByStatus[c.Status]++
		st.TotalEnrollments += len(c.Students)
	}
	return st
}
