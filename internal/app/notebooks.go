package app

import (
	"fmt"
	"strings"
	"time"

	"studybuddy/internal/util"
	"studybuddy/pkg/domain"
)

// NotebookInput is the create/update payload for a notebook.
type NotebookInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateNotebook creates an empty notebook for the user.
func (a *App) CreateNotebook(user domain.User, in NotebookInput) (domain.Notebook, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Notebook{}, Invalid("title is required")
	}
	now := time.Now().UTC()
	nb := domain.Notebook{
		ID:          util.NewID(),
		UserID:      user.ID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Content:     []any{},
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := a.store.SaveNotebook(nb); err != nil {
		return domain.Notebook{}, fmt.Errorf("save notebook: %w", err)
	}
	return nb, nil
}

// ListNotebooks returns the user's notebooks, most recently updated first.
func (a *App) ListNotebooks(user domain.User) ([]domain.Notebook, error) {
	return a.store.ListNotebooksByUser(user.ID)
}

// GetNotebook loads a notebook owned by the user.
func (a *App) GetNotebook(user domain.User, id string) (domain.Notebook, error) {
	nb, ok, err := a.store.GetNotebook(id)
	if err != nil {
		return domain.Notebook{}, fmt.Errorf("load notebook: %w", err)
	}
	if !ok {
		return domain.Notebook{}, ErrNotFound
	}
	if nb.UserID != user.ID {
		return domain.Notebook{}, ErrForbidden
	}
	return nb, nil
}

// UpdateNotebook changes the title/description of an owned notebook.
func (a *App) UpdateNotebook(user domain.User, id string, in NotebookInput) (domain.Notebook, error) {
	nb, err := a.GetNotebook(user, id)
	if err != nil {
		return domain.Notebook{}, err
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		nb.Title = title
	}
	nb.Description = strings.TrimSpace(in.Description)
	nb.LastUpdated = time.Now().UTC()
	if err := a.store.SaveNotebook(nb); err != nil {
		return domain.Notebook{}, fmt.Errorf("save notebook: %w", err)
	}
	return nb, nil
}

// DeleteNotebook removes a notebook and everything inside it. Files staged
// for unprocessed documents are removed best-effort.
func (a *App) DeleteNotebook(user domain.User, id string) error {
	if _, err := a.GetNotebook(user, id); err != nil {
		return err
	}
	docs, err := a.store.ListDocumentsByNotebook(id)
	if err == nil && a.files != nil {
		for _, d := range docs {
			if d.FilePath != "" {
				_ = a.files.Remove(d.FilePath)
			}
		}
	}
	if err := a.store.DeleteNotebook(id); err != nil {
		return fmt.Errorf("delete notebook: %w", err)
	}
	return nil
}

// touchNotebook bumps the notebook's LastUpdated stamp, best-effort.
func (a *App) touchNotebook(id string) {
	_ = a.store.TouchNotebook(id, time.Now().UTC())
}
