package api

import (
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// undocumentedPrefixes are served but are not part of the API contract.
var undocumentedPrefixes = []string{"/openapi.yaml", "/docs", "/static"}

// documentedRoutes returns "METHOD /path" for every operation in
// openapi.yaml.
func documentedRoutes(t *testing.T) []string {
	t.Helper()
	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(openapiSpec, &doc), "parsing openapi.yaml")

	var out []string
	for path, ops := range doc.Paths {
		for method := range ops {
			if method == "parameters" || strings.HasPrefix(method, "x-") {
				continue
			}
			out = append(out, strings.ToUpper(method)+" "+path)
		}
	}
	slices.Sort(out)
	return out
}

// registeredRoutes walks the router. Router() only registers handlers, so
// an API without backend clients is enough.
func registeredRoutes(t *testing.T) []string {
	t.Helper()
	a, err := New(Services{})
	require.NoError(t, err)

	var out []string
	err = chi.Walk(a.Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimRight(route, "/")
		}
		for _, p := range undocumentedPrefixes {
			if strings.HasPrefix(route, p) {
				return nil
			}
		}
		out = append(out, method+" "+route)
		return nil
	})
	require.NoError(t, err)
	slices.Sort(out)
	return slices.Compact(out)
}

// TestOpenAPIDrift fails when a route is served but undocumented, or
// documented but no longer served.
func TestOpenAPIDrift(t *testing.T) {
	documented := documentedRoutes(t)
	registered := registeredRoutes(t)

	for _, r := range registered {
		assert.True(t, slices.Contains(documented, r), "route %s is missing from openapi.yaml", r)
	}
	for _, r := range documented {
		assert.True(t, slices.Contains(registered, r), "openapi.yaml documents %s but Router() does not serve it", r)
	}
}
