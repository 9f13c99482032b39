package app

import (
	"context"
	"strings"
	"testing"
)

const flashcardResponse = `[
  {"question": "What is the powerhouse of the cell?", "answer": "Mitochondria"},
  {"question": "What is the basic unit of life?", "answer": "The cell"}
]`

func TestGenerateFlashcardsSavesBatch(t *testing.T) {
	gen := &fakeGenerator{responses: []string{flashcardResponse}}
	a, _ := newTestApp(t, gen)
	user := registerUser(t, a, "alice")
	nb := createNotebook(t, a, user)
	doc := addProcessedDocument(t, a, user, nb.ID)

	cards, err := a.GenerateFlashcards(context.Background(), user, nb.ID, FlashcardInput{
		DocumentIDs: []string{doc.ID},
	})
	if err != nil {
		t.Fatalf("GenerateFlashcards: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	listed, err := a.ListFlashcards(user, nb.ID)
	if err != nil {
		t.Fatalf("ListFlashcards: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed = %d, want 2", len(listed))
	}
}

func TestGenerateFlashcardsAbortsOnBadResponse(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`[{"question": "ok", "answer": "fine"}, {"question": "", "answer": ""}]`}}
	a, _ := newTestApp(t, gen)
	user := registerUser(t, a, "alice")
	nb := createNotebook(t, a, user)
	doc := addProcessedDocument(t, a, user, nb.ID)

	if _, err := a.GenerateFlashcards(context.Background(), user, nb.ID, FlashcardInput{
		DocumentIDs: []string{doc.ID},
	}); err == nil {
		t.Fatal("expected decode error")
	}
	listed, err := a.ListFlashcards(user, nb.ID)
	if err != nil {
		t.Fatalf("ListFlashcards: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("partial batch was saved: %d cards", len(listed))
	}
}

func TestGenerateFlashcardsIncludesExistingAsDoNotDuplicate(t *testing.T) {
	gen := &fakeGenerator{responses: []string{flashcardResponse, flashcardResponse}}
	a, _ := newTestApp(t, gen)
	user := registerUser(t, a, "alice")
	nb := createNotebook(t, a, user)
	doc := addProcessedDocument(t, a, user, nb.ID)

	in := FlashcardInput{DocumentIDs: []string{doc.ID}}
	if _, err := a.GenerateFlashcards(context.Background(), user, nb.ID, in); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if _, err := a.GenerateFlashcards(context.Background(), user, nb.ID, in); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	secondPrompt := gen.prompts[len(gen.prompts)-1]
	if !strings.Contains(secondPrompt, "What is the powerhouse of the cell?") {
		t.Fatal("second prompt should list existing questions to avoid")
	}
}

func TestGenerateFlashcardsRequiresDocuments(t *testing.T) {
	a, _ := newTestApp(t, &fakeGenerator{})
	user := registerUser(t, a, "alice")
	nb := createNotebook(t, a, user)

	if _, err := a.GenerateFlashcards(context.Background(), user, nb.ID, FlashcardInput{}); !IsValidation(err) {
		t.Fatalf("no documents: got %v, want validation error", err)
	}
}
