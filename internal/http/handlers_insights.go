package http

import (
	"net/http"

	"fintrack/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	sum, err := s.deps.Insights.Summary(r.Context(), owner(r), month, r.URL.Query().Get("label"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKindParam(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	month, err := parseMonth(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	totals, err := s.deps.Insights.Breakdown(r.Context(), owner(r), kind, month)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(totals).Write(w)
}

// handleHighest answers with the top expense category, or null.
func (s *Server) handleHighest(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonth(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	top, err := s.deps.Insights.Highest(r.Context(), owner(r), month)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(top).Write(w)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKindParam(r)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	monthly, err := s.deps.Insights.Monthly(r.Context(), owner(r), kind)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(monthly).Write(w)
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	preds, err := s.deps.Insights.Predictions(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(preds).Write(w)
}
