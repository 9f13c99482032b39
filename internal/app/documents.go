package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"studybuddy/internal/util"
	"studybuddy/pkg/domain"
)

// UploadDocument stages an uploaded PDF, records it unprocessed, and kicks
// off extraction in the background. The caller gets the record back before
// extraction has run.
func (a *App) UploadDocument(user domain.User, notebookID, filename, contentType string, size int64, r io.Reader) (domain.Document, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return domain.Document{}, err
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return domain.Document{}, Invalid("filename is required")
	}
	if !isPDF(filename, contentType) {
		return domain.Document{}, Invalid("only PDF files are supported")
	}
	path, err := a.files.Save(filename, r)
	if err != nil {
		return domain.Document{}, fmt.Errorf("save upload: %w", err)
	}

	doc := domain.Document{
		ID:               util.NewID(),
		NotebookID:       notebookID,
		UserID:           user.ID,
		Filename:         storedName(path),
		OriginalFilename: filename,
		FileSize:         size,
		FilePath:         path,
		FileType:         "application/pdf",
		UploadDate:       time.Now().UTC(),
	}
	if err := a.store.SaveDocument(doc); err != nil {
		_ = a.files.Remove(path)
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	a.touchNotebook(notebookID)

	a.background(func() {
		ctx := context.Background()
		// The initial extraction consumes the first attempt, so the retry
		// sweep accounting starts at 1 whether it succeeds or fails.
		_ = a.store.MarkDocumentAttempt(ctx, doc.ID, time.Now())
		_ = a.processor.Process(ctx, doc)
	})
	return doc, nil
}

// TextDocumentInput is the pasted-text document payload.
type TextDocumentInput struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// AddTextDocument stores pasted text as an already-processed document. The
// text is sanitized before storage since it arrives as untrusted markup.
func (a *App) AddTextDocument(user domain.User, notebookID string, in TextDocumentInput) (domain.Document, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return domain.Document{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Document{}, Invalid("title is required")
	}
	text := strings.TrimSpace(a.sanitizer.Sanitize(in.Text))
	if text == "" {
		return domain.Document{}, Invalid("text is required")
	}

	doc := domain.Document{
		ID:               util.NewID(),
		NotebookID:       notebookID,
		UserID:           user.ID,
		Filename:         title,
		OriginalFilename: title,
		FileSize:         int64(len(text)),
		FileType:         "text/plain",
		UploadDate:       time.Now().UTC(),
		Processed:        true,
		Content:          domain.DocumentContent{Text: text, Pages: 0},
	}
	if err := a.store.SaveDocument(doc); err != nil {
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	a.touchNotebook(notebookID)
	return doc, nil
}

// ListDocuments returns the documents in an owned notebook.
func (a *App) ListDocuments(user domain.User, notebookID string) ([]domain.Document, error) {
	if _, err := a.GetNotebook(user, notebookID); err != nil {
		return nil, err
	}
	return a.store.ListDocumentsByNotebook(notebookID)
}

// GetDocument loads a document scoped to its notebook and owner.
func (a *App) GetDocument(user domain.User, notebookID, documentID string) (domain.Document, error) {
	doc, ok, err := a.store.GetDocument(documentID)
	if err != nil {
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}
	if !ok || doc.NotebookID != notebookID {
		return domain.Document{}, ErrNotFound
	}
	if doc.UserID != user.ID {
		return domain.Document{}, ErrForbidden
	}
	return doc, nil
}

// DeleteDocument removes a document and its staged file if one remains.
func (a *App) DeleteDocument(user domain.User, notebookID, documentID string) error {
	doc, err := a.GetDocument(user, notebookID, documentID)
	if err != nil {
		return err
	}
	if doc.FilePath != "" && a.files != nil {
		_ = a.files.Remove(doc.FilePath)
	}
	if err := a.store.DeleteDocument(documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	a.touchNotebook(notebookID)
	return nil
}

// isPDF trusts the declared content type when one is present; the filename
// extension is only consulted when the client sent no type at all.
func isPDF(filename, contentType string) bool {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return strings.HasSuffix(strings.ToLower(filename), ".pdf")
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return strings.EqualFold(contentType, "application/pdf")
}

func storedName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
