package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studybuddy/internal/util"
	"studybuddy/pkg/domain"
)

const chatSystemPrompt = "You are a study assistant. Answer the user's questions using only the provided study material. If the material does not contain the answer, say so."

// ChatInput is the send-message payload. DocumentIDs select which processed
// documents ground the answer.
type ChatInput struct {
	Message     string   `json:"message"`
	DocumentIDs []string `json:"documentIds"`
	Model       string   `json:"model"`
}

// CreateChat starts a chat in a notebook and answers its first message.
func (a *App) CreateChat(ctx context.Context, user domain.User, notebookID string, in ChatInput) (domain.Chat, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return domain.Chat{}, err
	}
	now := time.Now().UTC()
	chat := domain.Chat{
		ID:            util.NewID(),
		NotebookID:    notebookID,
		UserID:        user.ID,
		Title:         "New Chat",
		Messages:      []domain.Message{},
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := a.store.SaveChat(chat); err != nil {
		return domain.Chat{}, fmt.Errorf("save chat: %w", err)
	}
	if strings.TrimSpace(in.Message) == "" {
		return chat, nil
	}
	answered, err := a.SendMessage(ctx, user, chat.ID, in)
	if err != nil {
		// A chat whose first message never got an answer is discarded
		// rather than left behind as an empty "New Chat".
		_ = a.store.DeleteChat(chat.ID)
		return domain.Chat{}, err
	}
	return answered, nil
}

// SendMessage appends a user message to the chat, asks the model for an
// answer grounded in the selected documents, and persists both turns.
func (a *App) SendMessage(ctx context.Context, user domain.User, chatID string, in ChatInput) (domain.Chat, error) {
	chat, err := a.getOwnedChat(user, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return domain.Chat{}, Invalid("message is required")
	}

	gen, err := a.userGenerator(user, in.Model)
	if err != nil {
		return domain.Chat{}, err
	}
	grounding, err := a.documentContext(in.DocumentIDs, chat.NotebookID, user.ID)
	if err != nil {
		return domain.Chat{}, err
	}

	history := chat.Messages
	prompt := message
	if grounding != "" {
		prompt = "Study material:\n" + grounding + "\n\nQuestion: " + message
	}
	answer, err := gen.Generate(ctx, chatSystemPrompt, history, prompt)
	now := time.Now().UTC()
	chat.Messages = append(chat.Messages, domain.Message{
		Role:      domain.RoleUser,
		Content:   message,
		Timestamp: now,
	})
	if err != nil {
		// Record the failure in the transcript so the client sees it on
		// reload, but keep the chat usable.
		chat.Messages = append(chat.Messages, domain.Message{
			Role:      domain.RoleSystem,
			Content:   "The model could not answer this message.",
			Timestamp: time.Now().UTC(),
		})
		chat.LastUpdatedAt = time.Now().UTC()
		_ = a.store.SaveChat(chat)
		return domain.Chat{}, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	chat.Messages = append(chat.Messages, domain.Message{
		Role:      domain.RoleModel,
		Content:   answer,
		Timestamp: time.Now().UTC(),
	})
	if chat.Title == "New Chat" {
		chat.Title = chatTitleFrom(message)
	}
	chat.LastUpdatedAt = time.Now().UTC()
	if err := a.store.SaveChat(chat); err != nil {
		return domain.Chat{}, fmt.Errorf("save chat: %w", err)
	}
	return chat, nil
}

// ListChats returns the chats in an owned notebook.
func (a *App) ListChats(user domain.User, notebookID string) ([]domain.Chat, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return nil, err
	}
	return a.store.ListChatsByNotebook(notebookID)
}

// GetChat loads an owned chat with its messages.
func (a *App) GetChat(user domain.User, chatID string) (domain.Chat, error) {
	return a.getOwnedChat(user, chatID)
}

// RenameChat sets the chat title.
func (a *App) RenameChat(user domain.User, chatID, title string) (domain.Chat, error) {
	chat, err := a.getOwnedChat(user, chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Chat{}, Invalid("title is required")
	}
	chat.Title = title
	chat.LastUpdatedAt = time.Now().UTC()
	if err := a.store.SaveChat(chat); err != nil {
		return domain.Chat{}, fmt.Errorf("save chat: %w", err)
	}
	return chat, nil
}

// DeleteChat removes an owned chat.
func (a *App) DeleteChat(user domain.User, chatID string) error {
	if _, err := a.getOwnedChat(user, chatID); err != nil {
		return err
	}
	if err := a.store.DeleteChat(chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (a *App) getOwnedChat(user domain.User, chatID string) (domain.Chat, error) {
	chat, ok, err := a.store.GetChat(chatID)
	if err != nil {
		return domain.Chat{}, fmt.Errorf("load chat: %w", err)
	}
	if !ok {
		return domain.Chat{}, ErrNotFound
	}
	if chat.UserID != user.ID {
		return domain.Chat{}, ErrForbidden
	}
	return chat, nil
}

// documentContext concatenates the text of the selected processed documents,
// each introduced by its title.
func (a *App) documentContext(ids []string, notebookID, userID string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	docs, err := a.store.ListProcessedDocuments(ids, notebookID, userID)
	if err != nil {
		return "", fmt.Errorf("load documents: %w", err)
	}
	if len(docs) == 0 {
		return "", Invalid("no processed documents selected")
	}
	var sb strings.Builder
	for _, d := range docs {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("## ")
		sb.WriteString(d.OriginalFilename)
		sb.WriteString("\n")
		sb.WriteString(d.Content.Text)
	}
	return sb.String(), nil
}

func chatTitleFrom(message string) string {
	const maxTitleRunes = 40
	title := strings.TrimSpace(message)
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = strings.TrimSpace(string(runes[:maxTitleRunes])) + "..."
	}
	return title
}
