package server

import (
	"net/http"
	"strings"

	"studybuddy/internal/app"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var creds app.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, err := s.app.Register(creds)
	if err != nil {
		s.audit(r, "register_failed", "username", creds.Username)
		writeAppError(w, err)
		return
	}
	s.audit(r, "register", "user_id", sess.User.ID)
	writeData(w, http.StatusCreated, sess)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var creds app.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, err := s.app.Login(creds)
	if err != nil {
		s.audit(r, "login_failed", "username", creds.Username)
		writeAppError(w, err)
		return
	}
	s.audit(r, "login", "user_id", sess.User.ID)
	writeData(w, http.StatusOK, sess)
}

func (s *Server) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	taken, err := s.app.CheckUsername(username)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"taken": taken})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Username    string `json:"username"`
		ResetKey    string `json:"resetKey"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, err := s.app.ResetPassword(req.Username, req.ResetKey, req.NewPassword)
	if err != nil {
		s.audit(r, "password_reset_failed", "username", req.Username)
		writeAppError(w, err)
		return
	}
	s.audit(r, "password_reset", "user_id", sess.User.ID)
	writeData(w, http.StatusOK, sess)
}
