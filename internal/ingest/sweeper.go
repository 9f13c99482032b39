package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"studybuddy/pkg/store"
)

// SweeperConfig bounds the retry sweep.
type SweeperConfig struct {
	Interval    time.Duration
	Cooldown    time.Duration
	MaxAttempts int
	BatchSize   int
}

// Sweeper periodically re-runs extraction for documents that failed.
// Overlapping sweeps are prevented with an atomic guard so a slow batch
// never stacks behind the next tick.
type Sweeper struct {
	store     store.Store
	processor *Processor
	cfg       SweeperConfig

	running atomic.Bool
	now     func() time.Time
}

// NewSweeper wires a sweeper over the store and processor.
func NewSweeper(s store.Store, p *Processor, cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		store:     s,
		processor: p,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes sweeps on the configured interval until the context ends.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and reports how many documents were
// attempted. It returns immediately when a previous sweep is still running.
func (s *Sweeper) RunOnce(ctx context.Context) (attempted int, skipped bool) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, true
	}
	defer s.running.Store(false)

	cutoff := s.now().Add(-s.cfg.Cooldown)
	docs, err := s.store.ListRetryCandidates(ctx, cutoff, s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		slog.Error("list retry candidates", "error", err)
		return 0, false
	}
	for _, doc := range docs {
		// Stamp the attempt before processing so a crash mid-extraction
		// still counts against the retry budget.
		if err := s.store.MarkDocumentAttempt(ctx, doc.ID, s.now()); err != nil {
			slog.Error("mark retry attempt", "document_id", doc.ID, "error", err)
			continue
		}
		attempted++
		if err := s.processor.Process(ctx, doc); err != nil {
			slog.Warn("retry extraction failed", "document_id", doc.ID, "error", err)
		} else {
			slog.Info("retry extraction succeeded", "document_id", doc.ID)
		}
	}
	return attempted, false
}
