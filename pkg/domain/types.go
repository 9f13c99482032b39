package domain

import "time"

type QuizStatus string

const (
	QuizGenerating QuizStatus = "generating"
	QuizOngoing    QuizStatus = "ongoing"
	QuizCompleted  QuizStatus = "completed"
	QuizError      QuizStatus = "error"
)

type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionShortAnswer QuestionType = "short_answer"
)

type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleModel  MessageRole = "model"
	RoleSystem MessageRole = "system"
)

type User struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	PasswordHash       string    `json:"-"`
	ResetKeyHash       string    `json:"-"`
	EncryptedGeminiKey string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
}

type Notebook struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     []any     `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// DocumentContent is the extraction payload filled in by the ingest pipeline.
type DocumentContent struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}

type Document struct {
	ID               string          `json:"id"`
	NotebookID       string          `json:"notebookId"`
	UserID           string          `json:"userId"`
	Filename         string          `json:"filename"`
	OriginalFilename string          `json:"originalFilename"`
	FileSize         int64           `json:"fileSize"`
	FilePath         string          `json:"-"`
	FileType         string          `json:"fileType"`
	UploadDate       time.Time       `json:"uploadDate"`
	Processed        bool            `json:"processed"`
	ProcessingError  string          `json:"processingError,omitempty"`
	RetryCount       int             `json:"retryCount"`
	LastAttemptAt    *time.Time      `json:"lastAttemptAt,omitempty"`
	Content          DocumentContent `json:"content"`
}

type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

type Chat struct {
	ID            string    `json:"id"`
	NotebookID    string    `json:"notebookId"`
	UserID        string    `json:"userId"`
	Title         string    `json:"title"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

type Flashcard struct {
	ID                string    `json:"id"`
	NotebookID        string    `json:"notebookId"`
	UserID            string    `json:"userId"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	SourceDocumentIDs []string  `json:"sourceDocumentIds"`
	Model             string    `json:"model"`
	CreatedAt         time.Time `json:"createdAt"`
}

type QuizQuestion struct {
	Type          QuestionType `json:"type"`
	QuestionText  string       `json:"questionText"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer"`
	UserAnswer    string       `json:"userAnswer,omitempty"`
}

type Quiz struct {
	ID                string         `json:"id"`
	NotebookID        string         `json:"notebookId"`
	UserID            string         `json:"userId"`
	Title             string         `json:"title"`
	SourceDocumentIDs []string       `json:"sourceDocumentIds"`
	Model             string         `json:"model"`
	Questions         []QuizQuestion `json:"questions"`
	Status            QuizStatus     `json:"status"`
	NumMCQs           int            `json:"numMCQs"`
	NumShortAnswer    int            `json:"numShortAnswer"`
	Score             *int           `json:"score"`
	Feedback          string         `json:"feedback,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	LastAttemptedAt   time.Time      `json:"lastAttemptedAt"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}
