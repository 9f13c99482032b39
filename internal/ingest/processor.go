package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"studybuddy/pkg/domain"
	"studybuddy/pkg/store"
)

// FileRemover deletes a stored upload once its text has been persisted.
type FileRemover interface {
	Remove(path string) error
}

// Processor runs text extraction for a document and records the outcome.
// Extraction failures are stored on the document, never surfaced to the
// uploader.
type Processor struct {
	store store.Store
	files FileRemover

	// extract is replaceable in tests. Defaults to ExtractPDF.
	extract func(path string) (domain.DocumentContent, error)
}

// NewProcessor wires a processor over the given store and file remover.
func NewProcessor(s store.Store, files FileRemover) *Processor {
	return &Processor{
		store:   s,
		files:   files,
		extract: ExtractPDF,
	}
}

// Process extracts text for the document. On success the extracted content is
// persisted first and only then is the source file removed, so a failed
// deletion can never lose extracted text. On failure the error message is
// stored on the document for the retry sweep to find.
func (p *Processor) Process(ctx context.Context, doc domain.Document) error {
	content, err := p.extract(doc.FilePath)
	if err != nil {
		msg := err.Error()
		if storeErr := p.store.SetDocumentError(ctx, doc.ID, msg); storeErr != nil {
			slog.Error("record extraction failure", "document_id", doc.ID, "error", storeErr)
		}
		return fmt.Errorf("extract document %s: %w", doc.ID, err)
	}

	if err := p.store.SetDocumentProcessed(ctx, doc.ID, content); err != nil {
		if storeErr := p.store.SetDocumentError(ctx, doc.ID, "failed to save extracted text"); storeErr != nil {
			slog.Error("record save failure", "document_id", doc.ID, "error", storeErr)
		}
		return fmt.Errorf("save extracted text for %s: %w", doc.ID, err)
	}

	// The file is only a staging copy once the text is stored.
	if err := p.files.Remove(doc.FilePath); err != nil {
		slog.Warn("remove processed upload", "document_id", doc.ID, "path", doc.FilePath, "error", err)
	}
	return nil
}
