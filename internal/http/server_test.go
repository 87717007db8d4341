package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

const testOrigin = "https://app.example.com"

type testServer struct {
	*Server
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := log.New(log.Config{Output: io.Discard})
	store := memory.New()
	lru := cache.NewLRUCache[json.RawMessage](100, time.Minute)
	hub := events.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	insights := services.NewInsightService(store, lru, logger)
	srv := NewServer(":0", Deps{
		Auth:               auth.NewService(store, auth.NewTokenIssuer("test-secret", time.Hour), logger),
		Ledger:             services.NewLedgerService(store, insights, hub, nil, logger),
		Insights:           insights,
		Hub:                hub,
		Store:              store,
		Logger:             logger,
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{testOrigin},
	})
	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown(context.Background())
	})
	return &testServer{Server: srv, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

// register creates an account and returns its bearer token.
func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/auth/register", "",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var out tokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	}
}

func TestReadyWithoutStore(t *testing.T) {
	srv := NewServer(":0", Deps{
		Auth:   auth.NewService(memory.New(), auth.NewTokenIssuer("s", time.Hour), log.New(log.Config{Output: io.Discard})),
		Logger: log.New(log.Config{Output: io.Discard}),
	})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")

	t.Run("duplicate username", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/auth/register", "",
			`{"username":"alice","email":"other@example.com","password":"correct-horse"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/auth/register", "",
			`{"username":"bob","email":"bob@example.com","password":"short"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/auth/login", "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("login", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"correct-horse"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, decodeBody[tokenResponse](t, rr).Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := ts.do(t, http.MethodPost, "/api/auth/login", "", `{"username":"alice","password":"wrong-horse"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("protected routes need a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/expenses", "", "").Code)
		assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/expenses", "garbage", "").Code)
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/expenses", token, "").Code)
	})
}

func TestRecordLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")

	rr := ts.do(t, http.MethodPost, "/api/expenses", token,
		`{"amount":"12.50","category":"Food","date":"2024-11-02","description":"lunch"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[map[string]any](t, rr)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/expenses/"+id, rr.Header().Get("Location"))
	assert.Equal(t, "Food", created["category"])
	assert.Equal(t, "2024-11-02", created["date"])

	rr = ts.do(t, http.MethodGet, "/api/expenses/"+id, token, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.do(t, http.MethodPut, "/api/expenses/"+id, token,
		`{"amount":20,"category":"Dining","date":"2024-11-03"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Dining", decodeBody[map[string]any](t, rr)["category"])

	rr = ts.do(t, http.MethodGet, "/api/expenses?month=10", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rr), 1)

	rr = ts.do(t, http.MethodGet, "/api/expenses?month=0", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeBody[[]map[string]any](t, rr))

	rr = ts.do(t, http.MethodDelete, "/api/expenses/"+id, token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Expense deleted", decodeBody[map[string]string](t, rr)["message"])

	rr = ts.do(t, http.MethodGet, "/api/expenses/"+id, token, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecordValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"bad amount", "/api/expenses", `{"amount":"abc","category":"Food","date":"2024-11-02"}`, http.StatusUnprocessableEntity},
		{"negative amount", "/api/income", `{"amount":"-5","source":"Salary","date":"2024-11-02"}`, http.StatusUnprocessableEntity},
		{"amount past cents range", "/api/expenses", `{"amount":"100000000000000000000","category":"Food","date":"2024-11-02"}`, http.StatusUnprocessableEntity},
		{"bad date", "/api/expenses", `{"amount":"5","category":"Food","date":"02/11/2024"}`, http.StatusUnprocessableEntity},
		{"missing label", "/api/savings", `{"amount":"5","date":"2024-11-02"}`, http.StatusUnprocessableEntity},
		{"label of another kind", "/api/income", `{"amount":"5","category":"Food","date":"2024-11-02"}`, http.StatusUnprocessableEntity},
		{"unknown field", "/api/expenses", `{"amount":"5","category":"Food","date":"2024-11-02","tip":1}`, http.StatusBadRequest},
		{"not json", "/api/expenses", `amount=5`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, tt.path, token, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decodeBody[map[string]string](t, rr)["error"])
		})
	}
}

func TestRecordsAreOwnerScoped(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")

	rr := ts.do(t, http.MethodPost, "/api/savings", alice, `{"amount":"100","goal":"Holiday","date":"2024-06-01"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeBody[map[string]any](t, rr)["id"].(string)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/savings/"+id, bob, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/savings/"+id, bob, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/expenses/"+id, alice, "").Code, "wrong kind")

	rr = ts.do(t, http.MethodGet, "/api/savings", bob, "")
	assert.Empty(t, decodeBody[[]map[string]any](t, rr))
}

func TestInsightEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")

	for _, body := range []struct{ path, json string }{
		{"/api/expenses", `{"amount":"30","category":"Food","date":"2024-11-01"}`},
		{"/api/expenses", `{"amount":"20","category":"Food","date":"2024-11-05"}`},
		{"/api/expenses", `{"amount":"40","category":"Food","date":"2024-11-20"}`},
		{"/api/expenses", `{"amount":"110","category":"Rent","date":"2024-11-10"}`},
		{"/api/income", `{"amount":"1000","source":"Salary","date":"2024-11-01"}`},
	} {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, body.path, token, body.json).Code)
	}

	rr := ts.do(t, http.MethodGet, "/api/insights/summary", token, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	summary := decodeBody[map[string]any](t, rr)
	assert.Equal(t, "1000", summary["total_income"])
	assert.Equal(t, "200", summary["total_expenses"])
	assert.Equal(t, "800", summary["net"])

	rr = ts.do(t, http.MethodGet, "/api/insights/highest?month=10", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Rent", decodeBody[map[string]any](t, rr)["label"])

	rr = ts.do(t, http.MethodGet, "/api/insights/highest?month=3", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", strings.TrimSpace(rr.Body.String()))

	rr = ts.do(t, http.MethodGet, "/api/insights/breakdown?kind=expense", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rr), 2)

	rr = ts.do(t, http.MethodGet, "/api/insights/monthly?kind=income", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[map[string]any](t, rr)["months"], 1)

	rr = ts.do(t, http.MethodGet, "/api/insights/predictions", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	preds := decodeBody[[]map[string]any](t, rr)
	require.Len(t, preds, 1, "Rent has one expense and must not be forecast")
	assert.Equal(t, "Food", preds[0]["category"])
	assert.Equal(t, "30", preds[0]["predicted_amount"])

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodGet, "/api/insights/summary?month=12", token, "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodGet, "/api/insights/breakdown?kind=loan", token, "").Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "x-auth-token, content-type")
		rr := httptest.NewRecorder()
		ts.Handler.ServeHTTP(rr, req)
		return rr
	}

	rr := preflight(testOrigin)
	assert.True(t, rr.Code >= 200 && rr.Code < 300, "status %d", rr.Code)
	assert.Equal(t, testOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers")), "x-auth-token")

	rr = preflight("https://evil.example.com")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", testOrigin)
	get := httptest.NewRecorder()
	ts.Handler.ServeHTTP(get, req)
	assert.Equal(t, http.StatusOK, get.Code)
	assert.Equal(t, testOrigin, get.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutingFallbacks(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", decodeBody[map[string]string](t, rr)["error"])

	rr = ts.do(t, http.MethodPut, "/healthz", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "alice")
	require.Equal(t, http.StatusCreated,
		ts.do(t, http.MethodPost, "/api/income", token, `{"amount":"5","source":"Gift","date":"2024-01-01"}`).Code)

	rr := ts.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "fintrack_records_created_total 1")
	assert.Contains(t, body, "fintrack_registrations_total 1")
	assert.Contains(t, body, `fintrack_http_responses_total{class="2xx"}`)
	assert.Contains(t, body, "fintrack_websocket_clients 0")
}

func TestRateLimitOnlyAppliesToWrites(t *testing.T) {
	logger := log.New(log.Config{Output: io.Discard})
	store := memory.New()
	srv := NewServer(":0", Deps{
		Auth:               auth.NewService(store, auth.NewTokenIssuer("s", time.Hour), logger),
		Store:              store,
		Logger:             logger,
		RateLimitPerMinute: 1,
	})
	defer srv.Shutdown(context.Background())

	login := func() int {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login",
			strings.NewReader(`{"username":"x","password":"y"}`)))
		return rr.Code
	}
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	for range 3 {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}
