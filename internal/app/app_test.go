package app

import (
	"context"
	"testing"
	"time"

	"studybuddy/internal/ingest"
	"studybuddy/pkg/ai"
	"studybuddy/pkg/auth"
	"studybuddy/pkg/crypt"
	"studybuddy/pkg/domain"
	"studybuddy/pkg/storage"
	"studybuddy/pkg/store"
)

// fakeGenerator replays canned responses in order.
type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, _ []domain.Message, prompt string) (string, error) {
	idx := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", nil
}

func newTestApp(t *testing.T, gen *fakeGenerator) (*App, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	cipher, err := crypt.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("crypt.New: %v", err)
	}
	a, err := New(Config{
		Store:     mem,
		Files:     files,
		Tokens:    tokens,
		Cipher:    cipher,
		Processor: ingest.NewProcessor(mem, files),
		Generator: func(apiKey, model string) (ai.TextGenerator, error) {
			return gen, nil
		},
		ValidateKey: func(context.Context, string) error { return nil },
		ListModels: func(context.Context, string) ([]string, error) {
			return []string{"gemini-2.0-flash"}, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, mem
}

type discardRemover struct{}

func (discardRemover) Remove(string) error { return nil }

// registerUser creates an account with a stored Gemini key.
func registerUser(t *testing.T, a *App, username string) domain.User {
	t.Helper()
	sess, err := a.Register(Credentials{Username: username, Password: "secret1"})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	if err := a.SetGeminiKey(context.Background(), sess.User, "AIzaFakeKey"); err != nil {
		t.Fatalf("SetGeminiKey: %v", err)
	}
	user, ok := a.UserFromToken(sess.Token)
	if !ok {
		t.Fatal("UserFromToken failed")
	}
	return user
}

func createNotebook(t *testing.T, a *App, user domain.User) domain.Notebook {
	t.Helper()
	nb, err := a.CreateNotebook(user, NotebookInput{Title: "Biology"})
	if err != nil {
		t.Fatalf("CreateNotebook: %v", err)
	}
	return nb
}

func addProcessedDocument(t *testing.T, a *App, user domain.User, notebookID string) domain.Document {
	t.Helper()
	doc, err := a.AddTextDocument(user, notebookID, TextDocumentInput{
		Title: "Cell notes",
		Text:  "Mitochondria are the powerhouse of the cell.",
	})
	if err != nil {
		t.Fatalf("AddTextDocument: %v", err)
	}
	return doc
}
