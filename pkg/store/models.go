package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                 string `gorm:"primaryKey"`
	Username           string `gorm:"uniqueIndex;not null"`
	PasswordHash       string `gorm:"not null"`
	ResetKeyHash       string `gorm:"not null"`
	EncryptedGeminiKey string
	CreatedAt          time.Time `gorm:"not null"`
}

type NotebookModel struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	Content     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null"`
	LastUpdated time.Time      `gorm:"not null;index"`
}

type DocumentModel struct {
	ID               string `gorm:"primaryKey"`
	NotebookID       string `gorm:"not null;index"`
	UserID           string `gorm:"not null;index"`
	Filename         string `gorm:"not null"`
	OriginalFilename string `gorm:"not null"`
	FileSize         int64
	FilePath         string
	FileType         string
	UploadDate       time.Time `gorm:"not null;index"`
	Processed        bool      `gorm:"not null;index"`
	ProcessingError  string
	RetryCount       int `gorm:"not null"`
	LastAttemptAt    *time.Time
	ContentText      string `gorm:"type:text"`
	ContentPages     int
}

type ChatModel struct {
	ID            string `gorm:"primaryKey"`
	NotebookID    string `gorm:"not null;index"`
	UserID        string `gorm:"not null;index"`
	Title         string
	Messages      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	LastUpdatedAt time.Time      `gorm:"not null;index"`
}

type FlashcardModel struct {
	ID                string `gorm:"primaryKey"`
	NotebookID        string `gorm:"not null;index"`
	UserID            string `gorm:"not null;index"`
	Question          string `gorm:"type:text;not null"`
	Answer            string `gorm:"type:text;not null"`
	SourceDocumentIDs datatypes.JSON `gorm:"type:jsonb"`
	Model             string
	CreatedAt         time.Time `gorm:"not null"`
}

type QuizModel struct {
	ID                string `gorm:"primaryKey"`
	NotebookID        string `gorm:"not null;index"`
	UserID            string `gorm:"not null;index"`
	Title             string
	SourceDocumentIDs datatypes.JSON `gorm:"type:jsonb"`
	Model             string
	Questions         datatypes.JSON `gorm:"type:jsonb"`
	Status            string         `gorm:"not null;index"`
	NumMCQs           int
	NumShortAnswer    int
	Score             *int
	Feedback          string `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null"`
	LastAttemptedAt   time.Time
	CompletedAt       *time.Time
}
