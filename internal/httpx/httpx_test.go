package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_DecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "v", in["k"])
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := New(srv.URL+"/", nil).Do(context.Background(), http.MethodPost, "/x", map[string]string{"k": "v"}, &out, Bearer("tok"))
	require.NoError(t, err)
	assert.Equal(t, "42", out.ID)
}

func TestDo_StatusErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad credentials","code":"AUTH_01"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)

	status, ok := StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "bad credentials", MessageOf(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "AUTH_01", se.Code)
}

func TestDo_NonJSONErrorBodyHasNoMessage(t *testing.T) {
	for name, body := range map[string]string{
		"plain text": "boom",
		"html page":  "<html><body><h1>502 Bad Gateway</h1><hr>nginx/1.25.3 internal-host-10.0.0.7</body></html>",
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(body))
			}))
			defer srv.Close()

			err := New(srv.URL, nil).Do(context.Background(), http.MethodGet, "/x", nil, nil)
			status, ok := StatusOf(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadGateway, status)
			assert.Empty(t, MessageOf(err))
			assert.NotContains(t, err.Error(), "nginx")
		})
	}
}

func TestDo_EmptyBodyIsFine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]any
	require.NoError(t, New(srv.URL, nil).Do(context.Background(), http.MethodPut, "/x", nil, &out))
	assert.Nil(t, out)
}

func TestDo_UnreachableWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url, nil).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	_, ok := StatusOf(err)
	assert.False(t, ok)
}
