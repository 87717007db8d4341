package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/log"
)

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := decodeJSON(r, &reg); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	reg.Username = sanitizeInput(reg.Username)
	reg.FullName = sanitizeInput(reg.FullName)

	sess, err := s.deps.Auth.Register(r.Context(), reg)
	if err != nil {
		s.writeError(w, r, log.OpRegister, err)
		return
	}
	s.metrics.registrations.Add(1)
	NewJSONResponse().Status(http.StatusCreated).Body(tokenResponse{Token: sess.Token}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sess, err := s.deps.Auth.Login(r.Context(), sanitizeInput(in.Username), in.Password)
	if err != nil {
		s.writeError(w, r, log.OpLogin, err)
		return
	}
	s.metrics.logins.Add(1)
	NewJSONResponse().Body(tokenResponse{Token: sess.Token}).Write(w)
}
