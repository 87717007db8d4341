package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/log"
)

func newTraced(t *testing.T, status int) (*Middleware, http.Handler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := log.DefaultConfig()
	cfg.Output = &buf
	cfg.Format = "json"
	m := NewMiddleware(func(*http.Request) string { return "203.0.113.1" }, log.New(cfg))
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(status)
	}))
	return m, h, &buf
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	_, h, buf := newTraced(t, http.StatusOK)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))

	id := rec.Header().Get(RequestIDHeader)
	require.True(t, strings.HasPrefix(id, "req_"))
	assert.Contains(t, buf.String(), id)
	assert.Contains(t, buf.String(), "203.0.113.1")
}

func TestMiddlewareHonoursIncomingRequestID(t *testing.T) {
	_, h, _ := newTraced(t, http.StatusOK)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "upstream-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "upstream-42", rec.Header().Get(RequestIDHeader))
}

func TestMiddlewareCountsStatusClasses(t *testing.T) {
	tests := []struct {
		status int
		pick   func(Metrics) int64
	}{
		{http.StatusCreated, func(m Metrics) int64 { return m.Responses2xx }},
		{http.StatusNotFound, func(m Metrics) int64 { return m.Responses4xx }},
		{http.StatusInternalServerError, func(m Metrics) int64 { return m.Responses5xx }},
	}
	for _, tt := range tests {
		m, h, buf := newTraced(t, tt.status)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		snap := m.Snapshot()
		assert.Equal(t, int64(1), snap.TotalRequests)
		assert.Equal(t, int64(1), tt.pick(snap), "status %d", tt.status)
		assert.Equal(t, int64(0), snap.InFlightRequest)
		assert.Contains(t, buf.String(), "HTTP request completed")
	}
}
