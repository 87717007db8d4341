package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"fintrack/internal/log"
)

// appMetrics counts ledger mutations served by this process.
type appMetrics struct {
	recordsCreated atomic.Int64
	recordsUpdated atomic.Int64
	recordsDeleted atomic.Int64
	logins         atomic.Int64
	registrations  atomic.Int64
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the ledger store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK
	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["store"] = "failed"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.deps.Hub != nil {
		checks["websocket_clients"] = fmt.Sprint(s.deps.Hub.Clients())
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	tm := s.traceMiddleware.Snapshot()
	rl := s.rateLimiter.GetMetrics()
	sec := s.securityDetector.GetMetrics()

	type metric struct {
		name, kind, help string
		value            int64
	}
	metrics := []metric{
		{"fintrack_http_requests_total", "counter", "HTTP requests received.", tm.TotalRequests},
		{"fintrack_http_requests_in_flight", "gauge", "HTTP requests being served.", tm.InFlightRequest},
		{"fintrack_http_request_duration_microseconds_total", "counter", "Time spent serving HTTP requests.", tm.DurationMicros},
		{"fintrack_rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter.", rl.TotalHits},
		{"fintrack_rate_limit_clients", "gauge", "Clients tracked by the rate limiter.", rl.ClientCount},
		{"fintrack_suspicious_requests_total", "counter", "Requests flagged as suspicious.", sec.SuspiciousRequests},
		{"fintrack_invalid_client_ip_total", "counter", "Requests with unparseable forwarded addresses.", sec.InvalidIPAttempts},
		{"fintrack_records_created_total", "counter", "Ledger records created.", s.metrics.recordsCreated.Load()},
		{"fintrack_records_updated_total", "counter", "Ledger records updated.", s.metrics.recordsUpdated.Load()},
		{"fintrack_records_deleted_total", "counter", "Ledger records deleted.", s.metrics.recordsDeleted.Load()},
		{"fintrack_logins_total", "counter", "Successful logins.", s.metrics.logins.Load()},
		{"fintrack_registrations_total", "counter", "Accounts registered.", s.metrics.registrations.Load()},
		{"fintrack_uptime_seconds", "gauge", "Seconds since the server started.", int64(time.Since(s.started).Seconds())},
	}
	if s.deps.Hub != nil {
		metrics = append(metrics, metric{"fintrack_websocket_clients", "gauge", "Open websocket connections.", int64(s.deps.Hub.Clients())})
	}

	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", m.name, m.help, m.name, m.kind, m.name, m.value)
	}

	byClass := []struct {
		class string
		value int64
	}{{"2xx", tm.Responses2xx}, {"3xx", tm.Responses3xx}, {"4xx", tm.Responses4xx}, {"5xx", tm.Responses5xx}}
	fmt.Fprint(w, "# HELP fintrack_http_responses_total HTTP responses by status class.\n# TYPE fintrack_http_responses_total counter\n")
	for _, c := range byClass {
		fmt.Fprintf(w, "fintrack_http_responses_total{class=%q} %d\n", c.class, c.value)
	}
}

// handleWS streams the caller's record events over a websocket.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		ErrorResponse(http.StatusServiceUnavailable, "change feed disabled").Write(w)
		return
	}
	s.deps.Hub.ServeWS(w, r, owner(r))
}
