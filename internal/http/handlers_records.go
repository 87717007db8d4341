package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func (s *Server) handleListRecords(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		month, err := parseMonth(r)
		if err != nil {
			s.writeError(w, r, log.OpList, err)
			return
		}
		filter := services.ListFilter{Month: month, Label: r.URL.Query().Get("label")}
		records, err := s.deps.Ledger.List(r.Context(), owner(r), kind, filter)
		if err != nil {
			s.writeError(w, r, log.OpList, err)
			return
		}
		NewJSONResponse().Body(records).Write(w)
	}
}

func (s *Server) handleGetRecord(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.deps.Ledger.Get(r.Context(), owner(r), kind, chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, log.OpRead, err)
			return
		}
		NewJSONResponse().Body(rec).Write(w)
	}
}

func (s *Server) handleCreateRecord(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.readRecord(w, r, kind)
		if !ok {
			return
		}
		saved, err := s.deps.Ledger.Create(r.Context(), owner(r), rec)
		if err != nil {
			s.writeError(w, r, log.OpCreate, err)
			return
		}
		s.metrics.recordsCreated.Add(1)
		NewJSONResponse().
			Status(http.StatusCreated).
			Header("Location", "/api/"+kind.Plural()+"/"+saved.ID).
			Body(saved).
			Write(w)
	}
}

func (s *Server) handleUpdateRecord(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.readRecord(w, r, kind)
		if !ok {
			return
		}
		saved, err := s.deps.Ledger.Update(r.Context(), owner(r), kind, chi.URLParam(r, "id"), rec)
		if err != nil {
			s.writeError(w, r, log.OpUpdate, err)
			return
		}
		s.metrics.recordsUpdated.Add(1)
		NewJSONResponse().Body(saved).Write(w)
	}
}

func (s *Server) handleDeleteRecord(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.deps.Ledger.Delete(r.Context(), owner(r), kind, chi.URLParam(r, "id")); err != nil {
			s.writeError(w, r, log.OpDelete, err)
			return
		}
		s.metrics.recordsDeleted.Add(1)
		NewJSONResponse().Message(kindTitle(kind) + " deleted").Write(w)
	}
}

// readRecord decodes and converts the request body, writing the error
// response itself when that fails.
func (s *Server) readRecord(w http.ResponseWriter, r *http.Request, kind core.Kind) (core.Record, bool) {
	var in recordInput
	if err := decodeJSON(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return core.Record{}, false
	}
	rec, err := in.toRecord(kind)
	if err != nil {
		s.writeError(w, r, log.OpValidate, err)
		return core.Record{}, false
	}
	return rec, true
}

func kindTitle(k core.Kind) string {
	switch k {
	case core.KindIncome:
		return "Income"
	case core.KindSaving:
		return "Saving"
	default:
		return "Expense"
	}
}
