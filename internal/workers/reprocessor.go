package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/wordtag/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultSweepInterval is how often pending analyses are checked
	DefaultSweepInterval = 5 * time.Minute
	// DefaultStaleAfter is how long an analysis may stay pending before its job is assumed lost
	DefaultStaleAfter = 15 * time.Minute

	sweepBatchSize = 100
)

// StaleAnalysisStore finds analyses whose jobs never ran
type StaleAnalysisStore interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// Reprocessor re-enqueues analyses stuck in pending, for example when the
// server stopped between storing an analysis and publishing its job.
// Duplicate jobs are harmless: the analyzer skips completed analyses.
type Reprocessor struct {
	store      StaleAnalysisStore
	jobQueue   queue.JobQueue
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewReprocessor creates a new reprocessor
func NewReprocessor(store StaleAnalysisStore, jobQueue queue.JobQueue, interval, staleAfter time.Duration, logger *zap.Logger) *Reprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reprocessor{
		store:      store,
		jobQueue:   jobQueue,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Start sweeps once per interval until ctx is cancelled
func (r *Reprocessor) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Warn("stale_analysis_sweep_failed", zap.Error(err))
			}
		}
	}
}

// Sweep re-enqueues one batch of stale analyses and returns how many were queued
func (r *Reprocessor) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.staleAfter)
	ids, err := r.store.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale analyses: %w", err)
	}

	requeued := 0
	for _, id := range ids {
		job := queue.NewAnalyzeTextJob(id)
		job.InjectTraceContext(ctx)
		if err := r.jobQueue.Enqueue(ctx, job); err != nil {
			// Queue is likely down; the next sweep retries the rest
			return requeued, fmt.Errorf("failed to enqueue analysis %s: %w", id, err)
		}
		if err := r.store.Touch(ctx, id); err != nil {
			r.logger.Warn("failed_to_touch_requeued_analysis",
				zap.String("analysis_id", id.String()),
				zap.Error(err),
			)
		}
		requeued++
	}

	if requeued > 0 {
		r.logger.Info("requeued_stale_analyses",
			zap.Int("count", requeued),
			zap.Duration("stale_after", r.staleAfter),
		)
	}
	return requeued, nil
}
