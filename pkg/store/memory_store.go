package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"studybuddy/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and local
// development without Postgres.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	usernames  map[string]string // username -> user ID
	notebooks  map[string]domain.Notebook
	documents  map[string]domain.Document
	chats      map[string]domain.Chat
	flashcards map[string]domain.Flashcard
	quizzes    map[string]domain.Quiz
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		usernames:  make(map[string]string),
		notebooks:  make(map[string]domain.Notebook),
		documents:  make(map[string]domain.Document),
		chats:      make(map[string]domain.Chat),
		flashcards: make(map[string]domain.Flashcard),
		quizzes:    make(map[string]domain.Quiz),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.users[u.ID]; ok && old.Username != u.Username {
		delete(m.usernames, old.Username)
	}
	m.users[u.ID] = u
	m.usernames[u.Username] = u.ID
	return nil
}

func (m *MemoryStore) HasUsername(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.usernames[username]
	return ok, nil
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *MemoryStore) GetUserByUsernameFold(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) SaveNotebook(n domain.Notebook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notebooks[n.ID] = n
	return nil
}

func (m *MemoryStore) GetNotebook(id string) (domain.Notebook, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notebooks[id]
	return n, ok, nil
}

func (m *MemoryStore) ListNotebooksByUser(userID string) ([]domain.Notebook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Notebook, 0)
	for _, n := range m.notebooks {
		if n.UserID == userID {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LastUpdated.After(res[j].LastUpdated) })
	return res, nil
}

func (m *MemoryStore) DeleteNotebook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notebooks, id)
	for docID, d := range m.documents {
		if d.NotebookID == id {
			delete(m.documents, docID)
		}
	}
	for chatID, c := range m.chats {
		if c.NotebookID == id {
			delete(m.chats, chatID)
		}
	}
	for cardID, f := range m.flashcards {
		if f.NotebookID == id {
			delete(m.flashcards, cardID)
		}
	}
	for quizID, q := range m.quizzes {
		if q.NotebookID == id {
			delete(m.quizzes, quizID)
		}
	}
	return nil
}

func (m *MemoryStore) TouchNotebook(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notebooks[id]
	if !ok {
		return nil
	}
	n.LastUpdated = at.UTC()
	m.notebooks[id] = n
	return nil
}

func (m *MemoryStore) SaveDocument(d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = d
	return nil
}

func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	return d, ok, nil
}

func (m *MemoryStore) ListDocumentsByNotebook(notebookID string) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0)
	for _, d := range m.documents {
		if d.NotebookID == notebookID {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadDate.After(res[j].UploadDate) })
	return res, nil
}

func (m *MemoryStore) ListProcessedDocuments(ids []string, notebookID, userID string) ([]domain.Document, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0, len(ids))
	for _, d := range m.documents {
		if _, ok := wanted[d.ID]; !ok {
			continue
		}
		if d.NotebookID != notebookID || d.UserID != userID || !d.Processed {
			continue
		}
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadDate.Before(res[j].UploadDate) })
	return res, nil
}

func (m *MemoryStore) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	return nil
}

func (m *MemoryStore) SetDocumentProcessed(_ context.Context, id string, content domain.DocumentContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil
	}
	d.Processed = true
	d.ProcessingError = ""
	d.Content = content
	m.documents[id] = d
	return nil
}

func (m *MemoryStore) SetDocumentError(_ context.Context, id string, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil
	}
	d.Processed = false
	d.ProcessingError = msg
	m.documents[id] = d
	return nil
}

func (m *MemoryStore) MarkDocumentAttempt(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil
	}
	d.RetryCount++
	stamped := at.UTC()
	d.LastAttemptAt = &stamped
	m.documents[id] = d
	return nil
}

func (m *MemoryStore) ListRetryCandidates(_ context.Context, cutoff time.Time, maxRetries, limit int) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0)
	for _, d := range m.documents {
		if d.Processed || d.RetryCount >= maxRetries {
			continue
		}
		if d.LastAttemptAt != nil && d.LastAttemptAt.After(cutoff) {
			continue
		}
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadDate.Before(res[j].UploadDate) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) SaveChat(c domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[c.ID] = c
	return nil
}

func (m *MemoryStore) GetChat(id string) (domain.Chat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[id]
	return c, ok, nil
}

func (m *MemoryStore) ListChatsByNotebook(notebookID string) ([]domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Chat, 0)
	for _, c := range m.chats {
		if c.NotebookID == notebookID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LastUpdatedAt.After(res[j].LastUpdatedAt) })
	return res, nil
}

func (m *MemoryStore) DeleteChat(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, id)
	return nil
}

func (m *MemoryStore) SaveFlashcard(f domain.Flashcard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flashcards[f.ID] = f
	return nil
}

func (m *MemoryStore) GetFlashcard(id string) (domain.Flashcard, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flashcards[id]
	return f, ok, nil
}

func (m *MemoryStore) ListFlashcardsByNotebook(notebookID string) ([]domain.Flashcard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Flashcard, 0)
	for _, f := range m.flashcards {
		if f.NotebookID == notebookID {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) DeleteFlashcard(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flashcards, id)
	return nil
}

func (m *MemoryStore) SaveQuiz(q domain.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *MemoryStore) GetQuiz(id string) (domain.Quiz, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	return q, ok, nil
}

func (m *MemoryStore) ListQuizzesByNotebook(notebookID string) ([]domain.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Quiz, 0)
	for _, q := range m.quizzes {
		if q.NotebookID == notebookID {
			res = append(res, q)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) DeleteQuiz(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quizzes, id)
	return nil
}
