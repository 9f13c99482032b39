package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studybuddy/internal/util"
	"studybuddy/pkg/ai"
	"studybuddy/pkg/domain"
)

const flashcardBatchSize = 10

const flashcardSystemPrompt = "You are a study assistant that writes flashcards. Respond with a JSON array only, no prose and no markdown."

// FlashcardInput selects the source documents and model for generation.
type FlashcardInput struct {
	DocumentIDs []string `json:"documentIds"`
	Model       string   `json:"model"`
}

type flashcardPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GenerateFlashcards asks the model for a batch of ten cards grounded in the
// selected documents. Existing cards are passed as a do-not-duplicate list.
// A malformed model response aborts the whole batch; nothing is saved
// partially.
func (a *App) GenerateFlashcards(ctx context.Context, user domain.User, notebookID string, in FlashcardInput) ([]domain.Flashcard, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return nil, err
	}
	if len(in.DocumentIDs) == 0 {
		return nil, Invalid("at least one document is required")
	}
	gen, err := a.userGenerator(user, in.Model)
	if err != nil {
		return nil, err
	}
	grounding, err := a.documentContext(in.DocumentIDs, notebookID, user.ID)
	if err != nil {
		return nil, err
	}
	existing, err := a.store.ListFlashcardsByNotebook(notebookID)
	if err != nil {
		return nil, fmt.Errorf("load flashcards: %w", err)
	}

	prompt := flashcardPrompt(grounding, existing)
	raw, err := gen.Generate(ctx, flashcardSystemPrompt, nil, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	var payload []flashcardPayload
	if err := ai.DecodeJSON(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode flashcards: %w", err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("decode flashcards: empty batch")
	}

	now := time.Now().UTC()
	cards := make([]domain.Flashcard, 0, len(payload))
	for _, p := range payload {
		question := strings.TrimSpace(p.Question)
		answer := strings.TrimSpace(p.Answer)
		if question == "" || answer == "" {
			return nil, fmt.Errorf("decode flashcards: card missing question or answer")
		}
		cards = append(cards, domain.Flashcard{
			ID:                util.NewID(),
			NotebookID:        notebookID,
			UserID:            user.ID,
			Question:          question,
			Answer:            answer,
			SourceDocumentIDs: in.DocumentIDs,
			Model:             in.Model,
			CreatedAt:         now,
		})
	}
	for _, card := range cards {
		if err := a.store.SaveFlashcard(card); err != nil {
			return nil, fmt.Errorf("save flashcard: %w", err)
		}
	}
	a.touchNotebook(notebookID)
	return cards, nil
}

// ListFlashcards returns the cards in an owned notebook.
func (a *App) ListFlashcards(user domain.User, notebookID string) ([]domain.Flashcard, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return nil, err
	}
	return a.store.ListFlashcardsByNotebook(notebookID)
}

// DeleteFlashcard removes an owned card.
func (a *App) DeleteFlashcard(user domain.User, flashcardID string) error {
	card, ok, err := a.store.GetFlashcard(flashcardID)
	if err != nil {
		return fmt.Errorf("load flashcard: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if card.UserID != user.ID {
		return ErrForbidden
	}
	if err := a.store.DeleteFlashcard(flashcardID); err != nil {
		return fmt.Errorf("delete flashcard: %w", err)
	}
	return nil
}

func flashcardPrompt(grounding string, existing []domain.Flashcard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create exactly %d flashcards from the study material below. ", flashcardBatchSize)
	sb.WriteString(`Respond with a JSON array of objects with "question" and "answer" string fields.`)
	if len(existing) > 0 {
		sb.WriteString("\n\nDo not repeat any of these existing questions:\n")
		for _, card := range existing {
			sb.WriteString("- ")
			sb.WriteString(card.Question)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nStudy material:\n")
	sb.WriteString(grounding)
	return sb.String()
}
