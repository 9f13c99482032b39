package server

import (
	"net/http"
	"strings"

	"studybuddy/internal/app"
	"studybuddy/pkg/domain"
)

func (s *Server) handleNotebooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		var in app.NotebookInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		nb, err := s.app.CreateNotebook(user, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusCreated, nb)
	case http.MethodGet:
		notebooks, err := s.app.ListNotebooks(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, notebooks)
	default:
		methodNotAllowed(w)
	}
}

// /api/notebooks/{id}
func (s *Server) handleNotebookByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/notebooks/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		nb, err := s.app.GetNotebook(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, nb)
	case http.MethodPut:
		var in app.NotebookInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		nb, err := s.app.UpdateNotebook(user, id, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, nb)
	case http.MethodDelete:
		if err := s.app.DeleteNotebook(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "notebook deleted")
	default:
		methodNotAllowed(w)
	}
}
