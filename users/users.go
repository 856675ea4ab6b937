// Package users is the client for the user service.
package users

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jmcleod/learngate/internal/httpx"
)

// User is the profile returned by the user service.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Role      []string `json:"role"`
}

// Client talks to the user service through the API gateway.
type Client struct {
	api *httpx.Client
}

// NewClient returns a Client for the gateway at baseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	return &Client{api: httpx.New(baseURL, hc)}
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	return c.get(ctx, token, "/api/v1/users/me")
}

// ByID returns the profile with the given id.
func (c *Client) ByID(ctx context.Context, token, id string) (*User, error) {
	return c.get(ctx, token, "/api/v1/users/"+url.PathEscape(id))
}

// ByEmail looks a profile up by email address.
func (c *Client) ByEmail(ctx context.Context, token, email string) (*User, error) {
	return c.get(ctx, token, "/api/v1/users/by-email?email="+url.QueryEscape(email))
}

func (c *Client) get(ctx context.Context, token, path string) (*User, error) {
	var u User
	if err := c.api.Do(ctx, http.MethodGet, path, nil, &u, httpx.Bearer(token)); err != nil {
		return nil, err
	}
	return &u, nil
}
