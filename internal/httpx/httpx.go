// Package httpx is the small JSON-over-HTTP helper shared by the upstream
// service clients. Non-2xx responses are returned as *StatusError and
// transport failures wrap ErrUnreachable, so callers can tell "the service
// said no" apart from "the service could not be asked".
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseSize bounds how much of an upstream body is read.
const maxResponseSize = 1 << 20

// ErrUnreachable wraps every transport-level failure (DNS, refused
// connection, reset, context cancellation).
var ErrUnreachable = errors.New("upstream unreachable")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream returned %d", e.Status)
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

// MessageOf returns the service-provided message carried by err, if any.
func MessageOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// Client issues JSON requests against a single base URL.
type Client struct {
	base string
	hc   *http.Client
}

// New returns a Client for baseURL. A nil hc uses a client without a
// timeout; deadlines come from the request context.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), hc: hc}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base
}

// RequestOption mutates an outgoing request.
type RequestOption func(*http.Request)

// Bearer sets the Authorization header.
func Bearer(token string) RequestOption {
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// Do sends in as the JSON body (when non-nil) and decodes a 2xx response
// into out (when non-nil and the body is not empty).
func (c *Client) Do(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// statusError keeps the message only when the body is a JSON error
// envelope. Anything else (proxy error pages, stack traces) stays out of
// user-facing text.
func statusError(status int, data []byte) *StatusError {
	se := &StatusError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		return se
	}
	se.Code = eb.Code
	se.Message = strings.TrimSpace(eb.Message)
	if se.Message == "" {
		se.Message = strings.TrimSpace(eb.Error)
	}
	return se
}
