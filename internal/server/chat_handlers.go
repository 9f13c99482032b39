package server

import (
	"net/http"
	"strings"

	"studybuddy/internal/app"
	"studybuddy/pkg/domain"
)

// /api/chat/{notebookID}            POST create, GET list
// /api/chat/{chatID}/messages       POST send, GET transcript
// /api/chat/{chatID}/title          PATCH rename
// /api/chat/{chatID}                DELETE
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "messages":
			s.handleChatMessages(w, r, user, id)
		case "title":
			s.handleRenameChat(w, r, user, id)
		default:
			notFound(w)
		}
		return
	}
	switch r.Method {
	case http.MethodPost:
		var in app.ChatInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		chat, err := s.app.CreateChat(r.Context(), user, id, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusCreated, chat)
	case http.MethodGet:
		chats, err := s.app.ListChats(user, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, chats)
	case http.MethodDelete:
		if err := s.app.DeleteChat(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "chat deleted")
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request, user domain.User, chatID string) {
	switch r.Method {
	case http.MethodPost:
		var in app.ChatInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		chat, err := s.app.SendMessage(r.Context(), user, chatID, in)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, chat)
	case http.MethodGet:
		chat, err := s.app.GetChat(user, chatID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeData(w, http.StatusOK, chat.Messages)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRenameChat(w http.ResponseWriter, r *http.Request, user domain.User, chatID string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	chat, err := s.app.RenameChat(user, chatID, req.Title)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeData(w, http.StatusOK, chat)
}
