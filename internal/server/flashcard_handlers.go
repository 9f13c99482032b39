package server

import (
	"net/http"
	"strings"

	"studybuddy/internal/app"
	"studybuddy/pkg/domain"
)

// /api/flashcards/{notebookID}   POST generate, GET list
// /api/flashcards/{flashcardID}  DELETE
func (s *Server) handleFlashcards(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/flashcards/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var in app.FlashcardInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		cards, err := s.app.GenerateFlashcards(r.Context(), user, id, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusCreated, cards)
	case http.MethodGet:
		cards, err := s.app.ListFlashcards(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, cards)
	case http.MethodDelete:
		if err := s.app.DeleteFlashcard(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "flashcard deleted")
	default:
		methodNotAllowed(w)
	}
}
