package server

import (
	"net/http"

	"studybuddy/pkg/domain"
)

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.ChangePassword(user, req.CurrentPassword, req.NewPassword); err != nil {
		s.audit(r, "password_change_failed", "user_id", user.ID)
		writeAppError(w, err)
		return
	}
	s.audit(r, "password_change", "user_id", user.ID)
	writeMessage(w, http.StatusOK, "password updated")
}

func (s *Server) handleSetGeminiKey(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.SetGeminiKey(r.Context(), user, req.APIKey); err != nil {
		s.audit(r, "gemini_key_rejected", "user_id", user.ID)
		writeAppError(w, err)
		return
	}
	s.audit(r, "gemini_key_set", "user_id", user.ID)
	writeMessage(w, http.StatusOK, "API key saved")
}

func (s *Server) handleAccountStatus(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeData(w, http.StatusOK, s.app.Status(user))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	models, err := s.app.Models(r.Context(), user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"models": models})
}
