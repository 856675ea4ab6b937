package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 200
)

// PaginationMeta is embedded in paginated list responses.
type PaginationMeta struct {
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// pageParams reads the "limit" and "offset" query parameters. Missing,
// malformed or non-positive values fall back to the defaults; limit is
// capped at maxPageLimit.
func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = positiveInt(q.Get("limit"), defaultPageLimit)
	offset = positiveInt(q.Get("offset"), 0)
	return min(limit, maxPageLimit), offset
}

func positiveInt(v string, fallback int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return fallback
}

// paginate returns the requested page of items. An offset past the end
// yields an empty page, never an error.
func paginate[T any](r *http.Request, items []T) ([]T, PaginationMeta) {
	limit, offset := pageParams(r)
	start := min(offset, len(items))
	end := min(start+limit, len(items))
	return items[start:end], PaginationMeta{
		TotalCount: len(items),
		Limit:      limit,
		Offset:     offset,
		HasMore:    end < len(items),
	}
}
