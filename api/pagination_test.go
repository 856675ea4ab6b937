package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageParams(t *testing.T) {
	cases := []struct {
		query        string
		limit, start int
	}{
		{"", defaultPageLimit, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=0", defaultPageLimit, 0},
		{"?limit=-5&offset=-1", defaultPageLimit, 0},
		{"?limit=abc&offset=xyz", defaultPageLimit, 0},
		{"?limit=5000", maxPageLimit, 0},
	}
	for _, tc := range cases {
		limit, offset := pageParams(httptest.NewRequest(http.MethodGet, "/items"+tc.query, nil))
		assert.Equal(t, tc.limit, limit, tc.query)
		assert.Equal(t, tc.start, offset, tc.query)
	}
}

func TestPaginate(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}
	get := func(query string) ([]int, PaginationMeta) {
		return paginate(httptest.NewRequest(http.MethodGet, "/items"+query, nil), items)
	}

	page, meta := get("?limit=2&offset=1")
	assert.Equal(t, []int{1, 2}, page)
	assert.Equal(t, PaginationMeta{TotalCount: 5, Limit: 2, Offset: 1, HasMore: true}, meta)

	page, meta = get("?limit=2&offset=3")
	assert.Equal(t, []int{3, 4}, page)
	assert.False(t, meta.HasMore)

	page, meta = get("?offset=50")
	assert.Empty(t, page)
	assert.Equal(t, 50, meta.Offset)
	assert.False(t, meta.HasMore)

	page, meta = paginate(httptest.NewRequest(http.MethodGet, "/items", nil), []int(nil))
	assert.Empty(t, page)
	assert.Zero(t, meta.TotalCount)
}
