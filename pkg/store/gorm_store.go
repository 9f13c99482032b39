package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"studybuddy/pkg/domain"
)

const migrateLockID int64 = 52185218

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent instances do not race the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&NotebookModel{},
			&DocumentModel{},
			&ChatModel{},
			&FlashcardModel{},
			&QuizModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "password_hash", "reset_key_hash", "encrypted_gemini_key"}),
	}).Create(&model).Error
}

// HasUsername checks if the username is taken.
func (s *GormStore) HasUsername(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByUsername looks up a user by exact username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsernameFold looks up a user ignoring username case.
func (s *GormStore) GetUserByUsernameFold(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("LOWER(username) = LOWER(?)", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveNotebook stores or updates a notebook.
func (s *GormStore) SaveNotebook(n domain.Notebook) error {
	model := notebookToModel(n)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "content", "last_updated"}),
	}).Create(&model).Error
}

// GetNotebook retrieves a notebook.
func (s *GormStore) GetNotebook(id string) (domain.Notebook, bool, error) {
	var model NotebookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Notebook{}, false, nil
		}
		return domain.Notebook{}, false, err
	}
	return notebookFromModel(model), true, nil
}

// ListNotebooksByUser returns the user's notebooks, most recently updated first.
func (s *GormStore) ListNotebooksByUser(userID string) ([]domain.Notebook, error) {
	var models []NotebookModel
	if err := s.db.Where("user_id = ?", userID).Order("last_updated DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Notebook, 0, len(models))
	for _, m := range models {
		res = append(res, notebookFromModel(m))
	}
	return res, nil
}

// DeleteNotebook removes the notebook and everything it contains.
func (s *GormStore) DeleteNotebook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&DocumentModel{}, "notebook_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ChatModel{}, "notebook_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&FlashcardModel{}, "notebook_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&QuizModel{}, "notebook_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&NotebookModel{}, "id = ?", id).Error
	})
}

// TouchNotebook bumps the notebook's last-updated timestamp.
func (s *GormStore) TouchNotebook(id string, at time.Time) error {
	return s.db.Model(&NotebookModel{}).Where("id = ?", id).
		Update("last_updated", at.UTC()).Error
}

// SaveDocument stores or updates a document.
func (s *GormStore) SaveDocument(d domain.Document) error {
	model := documentToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"processed", "processing_error", "retry_count", "last_attempt_at",
			"content_text", "content_pages", "file_path",
		}),
	}).Create(&model).Error
}

// GetDocument retrieves a document.
func (s *GormStore) GetDocument(id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocumentsByNotebook returns documents newest upload first.
func (s *GormStore) ListDocumentsByNotebook(notebookID string) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Where("notebook_id = ?", notebookID).Order("upload_date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// ListProcessedDocuments returns processed documents among ids scoped to the
// notebook and owner.
func (s *GormStore) ListProcessedDocuments(ids []string, notebookID, userID string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return []domain.Document{}, nil
	}
	var models []DocumentModel
	if err := s.db.Where("id IN ? AND notebook_id = ? AND user_id = ? AND processed = ?", ids, notebookID, userID, true).
		Order("upload_date ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// DeleteDocument removes a document record.
func (s *GormStore) DeleteDocument(id string) error {
	return s.db.Delete(&DocumentModel{}, "id = ?", id).Error
}

// SetDocumentProcessed records a successful extraction.
func (s *GormStore) SetDocumentProcessed(ctx context.Context, id string, content domain.DocumentContent) error {
	return s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"processed":        true,
			"processing_error": "",
			"content_text":     content.Text,
			"content_pages":    content.Pages,
		}).Error
}

// SetDocumentError records a failed extraction.
func (s *GormStore) SetDocumentError(ctx context.Context, id string, msg string) error {
	return s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"processed":        false,
			"processing_error": msg,
		}).Error
}

// MarkDocumentAttempt consumes one retry attempt before extraction runs.
func (s *GormStore) MarkDocumentAttempt(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_attempt_at": at.UTC(),
		}).Error
}

// ListRetryCandidates selects documents eligible for another extraction attempt.
func (s *GormStore) ListRetryCandidates(ctx context.Context, cutoff time.Time, maxRetries, limit int) ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.WithContext(ctx).
		Where("processed = ? AND retry_count < ?", false, maxRetries).
		Where("last_attempt_at IS NULL OR last_attempt_at <= ?", cutoff.UTC()).
		Order("upload_date ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// SaveChat stores or updates a chat thread.
func (s *GormStore) SaveChat(c domain.Chat) error {
	model := chatToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "messages", "last_updated_at"}),
	}).Create(&model).Error
}

// GetChat retrieves a chat thread.
func (s *GormStore) GetChat(id string) (domain.Chat, bool, error) {
	var model ChatModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Chat{}, false, nil
		}
		return domain.Chat{}, false, err
	}
	return chatFromModel(model), true, nil
}

// ListChatsByNotebook returns chats most recently active first.
func (s *GormStore) ListChatsByNotebook(notebookID string) ([]domain.Chat, error) {
	var models []ChatModel
	if err := s.db.Where("notebook_id = ?", notebookID).Order("last_updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Chat, 0, len(models))
	for _, m := range models {
		res = append(res, chatFromModel(m))
	}
	return res, nil
}

// DeleteChat removes a chat thread.
func (s *GormStore) DeleteChat(id string) error {
	return s.db.Delete(&ChatModel{}, "id = ?", id).Error
}

// SaveFlashcard stores a flashcard.
func (s *GormStore) SaveFlashcard(f domain.Flashcard) error {
	model := flashcardToModel(f)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"question", "answer"}),
	}).Create(&model).Error
}

// GetFlashcard retrieves a flashcard.
func (s *GormStore) GetFlashcard(id string) (domain.Flashcard, bool, error) {
	var model FlashcardModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Flashcard{}, false, nil
		}
		return domain.Flashcard{}, false, err
	}
	return flashcardFromModel(model), true, nil
}

// ListFlashcardsByNotebook returns flashcards oldest first.
func (s *GormStore) ListFlashcardsByNotebook(notebookID string) ([]domain.Flashcard, error) {
	var models []FlashcardModel
	if err := s.db.Where("notebook_id = ?", notebookID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Flashcard, 0, len(models))
	for _, m := range models {
		res = append(res, flashcardFromModel(m))
	}
	return res, nil
}

// DeleteFlashcard removes a flashcard.
func (s *GormStore) DeleteFlashcard(id string) error {
	return s.db.Delete(&FlashcardModel{}, "id = ?", id).Error
}

// SaveQuiz stores or updates a quiz.
func (s *GormStore) SaveQuiz(q domain.Quiz) error {
	model := quizToModel(q)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"questions", "status", "score", "feedback", "last_attempted_at", "completed_at",
		}),
	}).Create(&model).Error
}

// GetQuiz retrieves a quiz.
func (s *GormStore) GetQuiz(id string) (domain.Quiz, bool, error) {
	var model QuizModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Quiz{}, false, nil
		}
		return domain.Quiz{}, false, err
	}
	return quizFromModel(model), true, nil
}

// ListQuizzesByNotebook returns quizzes newest first.
func (s *GormStore) ListQuizzesByNotebook(notebookID string) ([]domain.Quiz, error) {
	var models []QuizModel
	if err := s.db.Where("notebook_id = ?", notebookID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Quiz, 0, len(models))
	for _, m := range models {
		res = append(res, quizFromModel(m))
	}
	return res, nil
}

// DeleteQuiz removes a quiz.
func (s *GormStore) DeleteQuiz(id string) error {
	return s.db.Delete(&QuizModel{}, "id = ?", id).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:                 u.ID,
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		ResetKeyHash:       u.ResetKeyHash,
		EncryptedGeminiKey: u.EncryptedGeminiKey,
		CreatedAt:          u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:                 m.ID,
		Username:           m.Username,
		PasswordHash:       m.PasswordHash,
		ResetKeyHash:       m.ResetKeyHash,
		EncryptedGeminiKey: m.EncryptedGeminiKey,
		CreatedAt:          m.CreatedAt,
	}
}

func notebookToModel(n domain.Notebook) NotebookModel {
	content, _ := json.Marshal(n.Content)
	return NotebookModel{
		ID:          n.ID,
		UserID:      n.UserID,
		Title:       n.Title,
		Description: n.Description,
		Content:     content,
		CreatedAt:   n.CreatedAt,
		LastUpdated: n.LastUpdated,
	}
}

func notebookFromModel(m NotebookModel) domain.Notebook {
	var content []any
	if len(m.Content) > 0 {
		_ = json.Unmarshal(m.Content, &content)
	}
	return domain.Notebook{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Content:     content,
		CreatedAt:   m.CreatedAt,
		LastUpdated: m.LastUpdated,
	}
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:               d.ID,
		NotebookID:       d.NotebookID,
		UserID:           d.UserID,
		Filename:         d.Filename,
		OriginalFilename: d.OriginalFilename,
		FileSize:         d.FileSize,
		FilePath:         d.FilePath,
		FileType:         d.FileType,
		UploadDate:       d.UploadDate,
		Processed:        d.Processed,
		ProcessingError:  d.ProcessingError,
		RetryCount:       d.RetryCount,
		LastAttemptAt:    d.LastAttemptAt,
		ContentText:      d.Content.Text,
		ContentPages:     d.Content.Pages,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:               m.ID,
		NotebookID:       m.NotebookID,
		UserID:           m.UserID,
		Filename:         m.Filename,
		OriginalFilename: m.OriginalFilename,
		FileSize:         m.FileSize,
		FilePath:         m.FilePath,
		FileType:         m.FileType,
		UploadDate:       m.UploadDate,
		Processed:        m.Processed,
		ProcessingError:  m.ProcessingError,
		RetryCount:       m.RetryCount,
		LastAttemptAt:    m.LastAttemptAt,
		Content: domain.DocumentContent{
			Text:  m.ContentText,
			Pages: m.ContentPages,
		},
	}
}

func chatToModel(c domain.Chat) ChatModel {
	messages, _ := json.Marshal(c.Messages)
	return ChatModel{
		ID:            c.ID,
		NotebookID:    c.NotebookID,
		UserID:        c.UserID,
		Title:         c.Title,
		Messages:      messages,
		CreatedAt:     c.CreatedAt,
		LastUpdatedAt: c.LastUpdatedAt,
	}
}

func chatFromModel(m ChatModel) domain.Chat {
	var messages []domain.Message
	if len(m.Messages) > 0 {
		_ = json.Unmarshal(m.Messages, &messages)
	}
	return domain.Chat{
		ID:            m.ID,
		NotebookID:    m.NotebookID,
		UserID:        m.UserID,
		Title:         m.Title,
		Messages:      messages,
		CreatedAt:     m.CreatedAt,
		LastUpdatedAt: m.LastUpdatedAt,
	}
}

func flashcardToModel(f domain.Flashcard) FlashcardModel {
	sources, _ := json.Marshal(f.SourceDocumentIDs)
	return FlashcardModel{
		ID:                f.ID,
		NotebookID:        f.NotebookID,
		UserID:            f.UserID,
		Question:          f.Question,
		Answer:            f.Answer,
		SourceDocumentIDs: sources,
		Model:             f.Model,
		CreatedAt:         f.CreatedAt,
	}
}

func flashcardFromModel(m FlashcardModel) domain.Flashcard {
	var sources []string
	if len(m.SourceDocumentIDs) > 0 {
		_ = json.Unmarshal(m.SourceDocumentIDs, &sources)
	}
	return domain.Flashcard{
		ID:                m.ID,
		NotebookID:        m.NotebookID,
		UserID:            m.UserID,
		Question:          m.Question,
		Answer:            m.Answer,
		SourceDocumentIDs: sources,
		Model:             m.Model,
		CreatedAt:         m.CreatedAt,
	}
}

func quizToModel(q domain.Quiz) QuizModel {
	sources, _ := json.Marshal(q.SourceDocumentIDs)
	questions, _ := json.Marshal(q.Questions)
	return QuizModel{
		ID:                q.ID,
		NotebookID:        q.NotebookID,
		UserID:            q.UserID,
		Title:             q.Title,
		SourceDocumentIDs: sources,
		Model:             q.Model,
		Questions:         questions,
		Status:            string(q.Status),
		NumMCQs:           q.NumMCQs,
		NumShortAnswer:    q.NumShortAnswer,
		Score:             q.Score,
		Feedback:          q.Feedback,
		CreatedAt:         q.CreatedAt,
		LastAttemptedAt:   q.LastAttemptedAt,
		CompletedAt:       q.CompletedAt,
	}
}

func quizFromModel(m QuizModel) domain.Quiz {
	var sources []string
	if len(m.SourceDocumentIDs) > 0 {
		_ = json.Unmarshal(m.SourceDocumentIDs, &sources)
	}
	var questions []domain.QuizQuestion
	if len(m.Questions) > 0 {
		_ = json.Unmarshal(m.Questions, &questions)
	}
	return domain.Quiz{
		ID:                m.ID,
		NotebookID:        m.NotebookID,
		UserID:            m.UserID,
		Title:             m.Title,
		SourceDocumentIDs: sources,
		Model:             m.Model,
		Questions:         questions,
		Status:            domain.QuizStatus(m.Status),
		NumMCQs:           m.NumMCQs,
		NumShortAnswer:    m.NumShortAnswer,
		Score:             m.Score,
		Feedback:          m.Feedback,
		CreatedAt:         m.CreatedAt,
		LastAttemptedAt:   m.LastAttemptedAt,
		CompletedAt:       m.CompletedAt,
	}
}
