package store

import (
	"context"
	"time"

	"studybuddy/pkg/domain"
)

// Store is the persistence boundary shared by the HTTP layer and the
// ingest pipeline. GormStore backs it in production, MemoryStore in tests.
type Store interface {
	// users
	SaveUser(u domain.User) error
	HasUsername(username string) (bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	// GetUserByUsernameFold matches the username case-insensitively.
	GetUserByUsernameFold(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// notebooks
	SaveNotebook(n domain.Notebook) error
	GetNotebook(id string) (domain.Notebook, bool, error)
	ListNotebooksByUser(userID string) ([]domain.Notebook, error)
	DeleteNotebook(id string) error
	TouchNotebook(id string, at time.Time) error

	// documents
	SaveDocument(d domain.Document) error
	GetDocument(id string) (domain.Document, bool, error)
	ListDocumentsByNotebook(notebookID string) ([]domain.Document, error)
	// ListProcessedDocuments returns the processed documents among ids that
	// belong to the given notebook and user.
	ListProcessedDocuments(ids []string, notebookID, userID string) ([]domain.Document, error)
	DeleteDocument(id string) error
	// SetDocumentProcessed records a successful extraction: processed=true,
	// content filled, processingError cleared.
	SetDocumentProcessed(ctx context.Context, id string, content domain.DocumentContent) error
	// SetDocumentError records a failed extraction: processed stays false.
	SetDocumentError(ctx context.Context, id string, msg string) error
	// MarkDocumentAttempt increments retryCount and stamps lastAttemptAt.
	MarkDocumentAttempt(ctx context.Context, id string, at time.Time) error
	// ListRetryCandidates selects unprocessed documents below maxRetries whose
	// lastAttemptAt is unset or at/before the cutoff, oldest upload first,
	// capped at limit. A nil lastAttemptAt counts as eligible so a document
	// whose attempt was never stamped is not stranded.
	ListRetryCandidates(ctx context.Context, cutoff time.Time, maxRetries, limit int) ([]domain.Document, error)

	// chats
	SaveChat(c domain.Chat) error
	GetChat(id string) (domain.Chat, bool, error)
	ListChatsByNotebook(notebookID string) ([]domain.Chat, error)
	DeleteChat(id string) error

	// flashcards
	SaveFlashcard(f domain.Flashcard) error
	GetFlashcard(id string) (domain.Flashcard, bool, error)
	ListFlashcardsByNotebook(notebookID string) ([]domain.Flashcard, error)
	DeleteFlashcard(id string) error

	// quizzes
	SaveQuiz(q domain.Quiz) error
	GetQuiz(id string) (domain.Quiz, bool, error)
	ListQuizzesByNotebook(notebookID string) ([]domain.Quiz, error)
	DeleteQuiz(id string) error
}
