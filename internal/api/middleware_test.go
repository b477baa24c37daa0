package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricPathCollapsesIDs(t *testing.T) {
	cases := map[string]string{
		"/api/trips":                      "/api/trips",
		"/api/trips/abc-123":              "/api/trips/:id",
		"/api/trips/abc-123/start":        "/api/trips/:id/start",
		"/api/trips/abc-123/events/stream": "/api/trips/:id/events/stream",
		"/api/maintenance/m1/close":       "/api/maintenance/:id/close",
		"/api/vehicles/v1":                "/api/vehicles/:id",
		"/healthz":                        "/healthz",
	}
	for in, want := range cases {
		assert.Equal(t, want, metricPath(in), in)
	}
}

func TestRateLimiterRejectsAfterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, do())
	require.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestRateLimiterKeysByClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, do("10.0.0.1:4000"))
	require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:4001"))
	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:4000"))
}
