package server

import (
	"net/http"
	"strings"

	"studybuddy/internal/app"
	"studybuddy/pkg/domain"
)

// /api/quizzes/{notebookID}            POST generate, GET list
// /api/quizzes/quiz/{quizID}           GET, DELETE
// /api/quizzes/quiz/{quizID}/attempt   PUT
// /api/quizzes/quiz/{quizID}/grade     POST
func (s *Server) handleQuizzes(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/quizzes/")
	if rest, ok := strings.CutPrefix(path, "quiz/"); ok {
		s.handleQuizByID(w, r, user, rest)
		return
	}
	notebookID := path
	if notebookID == "" || strings.Contains(notebookID, "/") {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var in app.QuizInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		quiz, err := s.app.GenerateQuiz(r.Context(), user, notebookID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		// Questions arrive in the background; the client polls for the
		// status change.
		writeData(w, http.StatusAccepted, quiz)
	case http.MethodGet:
		quizzes, err := s.app.ListQuizzes(user, notebookID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, quizzes)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleQuizByID(w http.ResponseWriter, r *http.Request, user domain.User, rest string) {
	parts := strings.SplitN(rest, "/", 2)
	quizID := parts[0]
	if quizID == "" {
		notFound(w)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "attempt":
			if r.Method != http.MethodPut {
				methodNotAllowed(w)
				return
			}
			var req struct {
				Answers map[int]string `json:"answers"`
			}
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			quiz, err := s.app.AttemptQuiz(user, quizID, req.Answers)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeData(w, http.StatusOK, quiz)
		case "grade":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			quiz, err := s.app.GradeQuiz(r.Context(), user, quizID)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeData(w, http.StatusOK, quiz)
		default:
			notFound(w)
		}
		return
	}
	switch r.Method {
	case http.MethodGet:
		quiz, err := s.app.GetQuiz(user, quizID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, quiz)
	case http.MethodDelete:
		if err := s.app.DeleteQuiz(user, quizID); err != nil {
			writeAppError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "quiz deleted")
	default:
		methodNotAllowed(w)
	}
}
