package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jmcleod/learngate/internal/httpx"
	"github.com/jmcleod/learngate/messages"
)

const (
	maxAuthBodySize  = 16 << 10
	maxSmallBodySize = 4 << 10
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON reads a JSON body of at most limit bytes into a T. On failure
// it writes a 400 and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		}
		return v, false
	}
	return v, true
}

// writeUpstreamError maps a backend failure to a response. Rejections keep
// their status class and the service's own message when it sent one;
// transport failures become 502 with a localized text.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, fallback messages.Key) {
	status, ok := httpx.StatusOf(err)
	if !ok {
		key := fallback
		if errors.Is(err, httpx.ErrUnreachable) {
			key = messages.ServerUnreachable
		}
		writeError(w, http.StatusBadGateway, messages.Text(r.Context(), key))
		return
	}

	msg := httpx.MessageOf(err)
	if msg == "" {
		msg = messages.Text(r.Context(), fallback)
	}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound, status == http.StatusConflict:
		writeError(w, status, msg)
	case status >= 400 && status < 500:
		writeError(w, http.StatusBadRequest, msg)
	default:
		writeError(w, http.StatusBadGateway, msg)
	}
}
