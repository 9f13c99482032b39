package server

import (
	"errors"
	"net/http"
	"strings"

	"studybuddy/internal/app"
	"studybuddy/pkg/domain"
)

// /api/documents/{notebookID}
// /api/documents/{notebookID}/text
// /api/documents/{notebookID}/{documentID}
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	parts := strings.SplitN(path, "/", 2)
	notebookID := parts[0]
	if notebookID == "" {
		notFound(w)
		return
	}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPost:
			s.handleUploadDocument(w, r, user, notebookID)
		case http.MethodGet:
			docs, err := s.app.ListDocuments(user, notebookID)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeData(w, http.StatusOK, docs)
		default:
			methodNotAllowed(w)
		}
		return
	}
	if parts[1] == "text" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleAddTextDocument(w, r, user, notebookID)
		return
	}
	documentID := parts[1]
	switch r.Method {
	case http.MethodGet:
		doc, err := s.app.GetDocument(user, notebookID, documentID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := s.app.DeleteDocument(user, notebookID, documentID); err != nil {
			writeAppError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "document deleted")
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request, user domain.User, notebookID string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: document)")
		return
	}
	defer file.Close()

	doc, err := s.app.UploadDocument(user, notebookID, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusCreated, doc)
}

func (s *Server) handleAddTextDocument(w http.ResponseWriter, r *http.Request, user domain.User, notebookID string) {
	var in app.TextDocumentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc, err := s.app.AddTextDocument(user, notebookID, in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusCreated, doc)
}
