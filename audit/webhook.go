package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// webhookQueueSize is the bounded channel capacity for outbound audit events.
const webhookQueueSize = 1024

// Webhook dispatches audit entries to an external HTTP endpoint.
// Entries are enqueued non-blockingly into a bounded channel and sent
// by a background goroutine. If the channel is full, entries are dropped.
type Webhook struct {
	url        string
	authHeader string // "Header: Value" format, e.g., "Authorization: Bearer xxx"
	client     *http.Client
	retryDelay time.Duration
	events     chan Entry
	wg         sync.WaitGroup
	once       sync.Once
}

// NewWebhook creates a webhook dispatcher and starts its background loop.
func NewWebhook(url, authHeader string) *Webhook {
	w := &Webhook{
		url:        url,
		authHeader: authHeader,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryDelay: time.Second,
		events:     make(chan Entry, webhookQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue adds an entry to the dispatch queue. It never blocks and must not
// be called after Close.
func (w *Webhook) Enqueue(e Entry) {
	select {
	case w.events <- e:
	default:
		slog.Warn("audit webhook: queue full, dropping event", "event", string(e.Event))
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// end, whichever comes first.
func (w *Webhook) Close(ctx context.Context) {
	w.once.Do(func() { close(w.events) })
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (w *Webhook) loop() {
	defer w.wg.Done()
	for e := range w.events {
		w.send(e)
	}
}

// send POSTs the entry to the configured URL with one retry on 5xx.
func (w *Webhook) send(e Entry) {
	body, err := json.Marshal(e)
	if err != nil {
		slog.Warn("audit webhook: marshal failed", "error", err)
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(w.retryDelay)
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			slog.Warn("audit webhook: request creation failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "LearnGate-Audit-Webhook/1.0")

		if name, value, ok := strings.Cut(w.authHeader, ":"); ok {
			req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}

		resp, err := w.client.Do(req)
		if err != nil {
			slog.Warn("audit webhook: request failed", "error", err, "attempt", attempt+1)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return
		case resp.StatusCode >= 500:
			slog.Warn("audit webhook: server error", "status", resp.StatusCode, "attempt", attempt+1)
		default:
			slog.Warn("audit webhook: client error", "status", resp.StatusCode)
			return
		}
	}
}
