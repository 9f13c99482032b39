package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studybuddy/pkg/domain"
	"studybuddy/pkg/store"
)

func testSweeper(s store.Store, p *Processor) *Sweeper {
	return NewSweeper(s, p, SweeperConfig{
		Interval:    2 * time.Minute,
		Cooldown:    5 * time.Minute,
		MaxAttempts: 3,
		BatchSize:   10,
	})
}

func seedFailedDocument(t *testing.T, s store.Store, id string, retryCount int, lastAttempt *time.Time) {
	t.Helper()
	err := s.SaveDocument(domain.Document{
		ID:               id,
		NotebookID:       "nb-1",
		UserID:           "user-1",
		Filename:         id + ".pdf",
		OriginalFilename: id + ".pdf",
		FilePath:         "/tmp/uploads/" + id + ".pdf",
		ProcessingError:  "no text extracted from pdf",
		RetryCount:       retryCount,
		LastAttemptAt:    lastAttempt,
	})
	if err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
}

func TestRunOnceRetriesCooledDownFailures(t *testing.T) {
	s := store.NewMemoryStore()
	old := time.Now().Add(-10 * time.Minute)
	seedFailedDocument(t, s, "doc-old", 1, &old)
	recent := time.Now().Add(-1 * time.Minute)
	seedFailedDocument(t, s, "doc-recent", 1, &recent)

	var processed []string
	p := NewProcessor(s, &fakeRemover{})
	p.extract = func(path string) (domain.DocumentContent, error) {
		processed = append(processed, path)
		return domain.DocumentContent{Text: "recovered", Pages: 1}, nil
	}
	sw := testSweeper(s, p)

	attempted, skipped := sw.RunOnce(context.Background())
	if skipped {
		t.Fatal("sweep should not be skipped")
	}
	if attempted != 1 {
		t.Fatalf("attempted = %d, want 1 (only the cooled-down doc)", attempted)
	}
	if len(processed) != 1 || processed[0] != "/tmp/uploads/doc-old.pdf" {
		t.Fatalf("processed = %v", processed)
	}
	doc, _, _ := s.GetDocument("doc-old")
	if !doc.Processed {
		t.Fatal("retried document should be processed")
	}
	if doc.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", doc.RetryCount)
	}
}

func TestRunOnceRetriesUploadTimeFailure(t *testing.T) {
	// Upload-path extraction records the error but never stamps an attempt,
	// so the document arrives with retryCount 0 and no lastAttemptAt.
	s := store.NewMemoryStore()
	seedFailedDocument(t, s, "doc-upload-fail", 0, nil)

	var processed []string
	p := NewProcessor(s, &fakeRemover{})
	p.extract = func(path string) (domain.DocumentContent, error) {
		processed = append(processed, path)
		return domain.DocumentContent{Text: "recovered", Pages: 1}, nil
	}
	sw := testSweeper(s, p)

	attempted, skipped := sw.RunOnce(context.Background())
	if skipped {
		t.Fatal("sweep should not be skipped")
	}
	if attempted != 1 {
		t.Fatalf("attempted = %d, want 1", attempted)
	}
	if len(processed) != 1 || processed[0] != "/tmp/uploads/doc-upload-fail.pdf" {
		t.Fatalf("processed = %v", processed)
	}
	doc, _, _ := s.GetDocument("doc-upload-fail")
	if !doc.Processed {
		t.Fatal("retried document should be processed")
	}
	if doc.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", doc.RetryCount)
	}
	if doc.LastAttemptAt == nil {
		t.Fatal("last attempt time must be stamped")
	}
}

func TestRunOnceSkipsExhaustedDocuments(t *testing.T) {
	s := store.NewMemoryStore()
	old := time.Now().Add(-time.Hour)
	seedFailedDocument(t, s, "doc-exhausted", 3, &old)

	p := NewProcessor(s, &fakeRemover{})
	p.extract = func(path string) (domain.DocumentContent, error) {
		t.Fatal("exhausted document must not be retried")
		return domain.DocumentContent{}, nil
	}
	sw := testSweeper(s, p)

	if attempted, _ := sw.RunOnce(context.Background()); attempted != 0 {
		t.Fatalf("attempted = %d, want 0", attempted)
	}
}

func TestRunOnceStampsAttemptBeforeProcessing(t *testing.T) {
	s := store.NewMemoryStore()
	old := time.Now().Add(-time.Hour)
	seedFailedDocument(t, s, "doc-1", 0, &old)

	p := NewProcessor(s, &fakeRemover{})
	p.extract = func(path string) (domain.DocumentContent, error) {
		doc, _, _ := s.GetDocument("doc-1")
		if doc.RetryCount != 1 {
			t.Errorf("retry count during extraction = %d, want 1", doc.RetryCount)
		}
		return domain.DocumentContent{}, errors.New("still broken")
	}
	sw := testSweeper(s, p)
	sw.RunOnce(context.Background())

	doc, _, _ := s.GetDocument("doc-1")
	if doc.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", doc.RetryCount)
	}
	if doc.LastAttemptAt == nil {
		t.Fatal("last attempt time must be stamped")
	}
}

func TestRunOnceGuardsAgainstOverlap(t *testing.T) {
	s := store.NewMemoryStore()
	old := time.Now().Add(-time.Hour)
	seedFailedDocument(t, s, "doc-slow", 0, &old)

	extracting := make(chan struct{})
	release := make(chan struct{})
	p := NewProcessor(s, &fakeRemover{})
	p.extract = func(path string) (domain.DocumentContent, error) {
		close(extracting)
		<-release
		return domain.DocumentContent{Text: "done", Pages: 1}, nil
	}
	sw := testSweeper(s, p)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sw.RunOnce(context.Background())
	}()
	<-extracting

	if _, skipped := sw.RunOnce(context.Background()); !skipped {
		t.Fatal("concurrent sweep must be skipped")
	}
	close(release)
	wg.Wait()

	if _, skipped := sw.RunOnce(context.Background()); skipped {
		t.Fatal("guard must be released after the sweep finishes")
	}
}
