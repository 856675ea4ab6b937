// Package client talks to the learngate BFF the way a browser does: the
// session lives in a cookie jar and mutating requests echo the CSRF cookie
// as a header.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/jmcleod/learngate/auth"
	"github.com/jmcleod/learngate/catalog"
	"github.com/jmcleod/learngate/internal/httpx"
	"github.com/jmcleod/learngate/notifications"
	"github.com/jmcleod/learngate/session"
)

const (
	csrfCookie = "learngate_csrf"
	csrfHeader = "X-CSRF-Token"

	// pageLimit is the largest page the BFF serves.
	pageLimit = 200
)

// ErrNotSignedIn is returned by Login when the BFF accepted the request but
// no session cookie came back.
var ErrNotSignedIn = errors.New("client: not signed in")

// Client is a BFF client with its own cookie jar.
type Client struct {
	base *url.URL
	jar  http.CookieJar
	api  *httpx.Client
}

// Option configures a Client.
type Option func(*http.Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(hc *http.Client) { hc.Timeout = d }
}

// New returns a Client for the BFF at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{
		Jar: jar,
		// Redirects are answers here (logout, gate), not hops to follow.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	for _, opt := range opts {
		opt(hc)
	}
	return &Client{base: base, jar: jar, api: httpx.New(baseURL, hc)}, nil
}

// Authenticated reports whether the jar holds an access token.
func (c *Client) Authenticated() bool {
	return c.cookie(session.AccessTokenCookie) != ""
}

// Login signs in. A rejection is an *httpx.StatusError carrying the BFF's
// message.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var res auth.Result
	err := c.api.Do(ctx, http.MethodPost, "/auth/login", auth.Credentials{Email: email, Password: password}, &res)
	if err != nil {
		return err
	}
	if !c.Authenticated() {
		return ErrNotSignedIn
	}
	return nil
}

// Logout signs out. The BFF answers with a redirect to its login page.
func (c *Client) Logout(ctx context.Context) error {
	err := c.api.Do(ctx, http.MethodPost, "/auth/logout", nil, nil, c.csrf())
	if status, ok := httpx.StatusOf(err); ok && status == http.StatusSeeOther {
		return nil
	}
	return err
}

type page[T any] struct {
	Items []T `json:"items"`
}

// Notifications returns the caller's notifications, unread first.
func (c *Client) Notifications(ctx context.Context) ([]notifications.Notification, error) {
	var p page[notifications.Notification]
	if err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/notifications?limit=%d", pageLimit), nil, &p); err != nil {
		return nil, err
	}
	return p.Items, nil
}

// MarkRead marks one notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.api.Do(ctx, http.MethodPut, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil, c.csrf())
}

// Courses lists the courses.
func (c *Client) Courses(ctx context.Context) ([]catalog.Course, error) {
	var p page[catalog.Course]
	if err := c.api.Do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/courses?limit=%d", pageLimit), nil, &p); err != nil {
		return nil, err
	}
	return p.Items, nil
}

// ChangeCourseStatus moves a course to status s.
func (c *Client) ChangeCourseStatus(ctx context.Context, id string, s catalog.Status) (*catalog.Course, error) {
	var out catalog.Course
	path := "/api/v1/courses/" + url.PathEscape(id) + "/status"
	if err := c.api.Do(ctx, http.MethodPatch, path, map[string]catalog.Status{"status": s}, &out, c.csrf()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) csrf() httpx.RequestOption {
	token := c.cookie(csrfCookie)
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set(csrfHeader, token)
		}
	}
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
