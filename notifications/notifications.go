// Package notifications models the per-user notification inbox and talks to
// the notification service.
package notifications

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/jmcleod/learngate/internal/httpx"
)

// DefaultLink is the link assigned when a notification type has no target.
const DefaultLink = "/#"

// Notification is the inbox item as served to clients.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	Link      string    `json:"link"`
}

// Key identifies a notification inside an optimistic collection.
func Key(n Notification) string { return n.ID }

// MarkRead returns n marked as read. Applying it twice yields the same value
// as applying it once.
func MarkRead(n Notification) Notification {
	n.Read = true
	return n
}

// Sort orders unread notifications first, newest first within each group.
func Sort(ns []Notification) {
	slices.SortStableFunc(ns, func(a, b Notification) int {
		if a.Read != b.Read {
			if !a.Read {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// UnreadCount returns the number of unread notifications.
func UnreadCount(ns []Notification) int {
	n := 0
	for _, x := range ns {
		if !x.Read {
			n++
		}
	}
	return n
}

// dto is the notification service's wire shape.
type dto struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

// The service emits either zoned RFC 3339 or a bare local date-time.
var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (d dto) notification() Notification {
	return Notification{
		ID:        d.ID,
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		Read:      d.IsRead,
		CreatedAt: parseTime(d.CreatedAt),
		Link:      linkFor(d.Type),
	}
}

// linkFor maps a notification type to an in-app target. No type has a
// dedicated page yet.
func linkFor(string) string {
	return DefaultLink
}

// Client talks to the notification service through the API gateway.
type Client struct {
	api *httpx.Client
}

// NewClient returns a Client for the gateway at baseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	return &Client{api: httpx.New(baseURL, hc)}
}

// List returns the caller's notifications, sorted.
func (c *Client) List(ctx context.Context, token string) ([]Notification, error) {
	var raw []dto
	if err := c.api.Do(ctx, http.MethodGet, "/api/v1/notifications/users/me", nil, &raw, httpx.Bearer(token)); err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, d := range raw {
		out = append(out, d.notification())
	}
	Sort(out)
	return out, nil
}

// MarkRead marks one notification as read. The endpoint is idempotent. The
// returned notification is nil when the service answered without a body.
func (c *Client) MarkRead(ctx context.Context, token, id string) (*Notification, error) {
	var d dto
	if err := c.api.Do(ctx, http.MethodPut, "/api/v1/notifications/"+url.PathEscape(id)+"/read", nil, &d, httpx.Bearer(token)); err != nil {
		return nil, err
	}
	if d.ID == "" {
		return nil, nil
	}
	n := d.notification()
	return &n, nil
}
