// Package ingest extracts text from uploaded documents and retries failed
// extractions on a schedule.
package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"studybuddy/pkg/domain"
)

// ExtractPDF pulls plain text out of a PDF on disk. Pages that cannot be
// decoded are skipped; the extraction fails only when no page yields text.
func ExtractPDF(path string) (domain.DocumentContent, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return domain.DocumentContent{}, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = normalizeText(text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return domain.DocumentContent{}, fmt.Errorf("no text extracted from pdf")
	}
	return domain.DocumentContent{
		Text:  sb.String(),
		Pages: totalPages,
	}, nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
