package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/cache"
	"github.com/benvon/wordtag/internal/database"
	logpkg "github.com/benvon/wordtag/internal/logger"
	"github.com/benvon/wordtag/internal/queue"
	"github.com/benvon/wordtag/internal/tagger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/wordtag/internal/workers"

// errInvalidJob marks jobs that can never succeed
var errInvalidJob = errors.New("invalid job")

// JobProcessor handles one job type
type JobProcessor func(ctx context.Context, job *queue.Job) error

type processorEntry struct {
	proc JobProcessor
	// failAnalysis marks the job's analysis failed when the job is dead-lettered
	failAnalysis bool
}

// ResultStore receives completed results so the API can serve repeats from cache
type ResultStore interface {
	Set(ctx context.Context, text string, useAverages bool, entry *cache.Entry)
}

// Analyzer processes analyze_text jobs
type Analyzer struct {
	aggregator analysis.Aggregator
	repo       database.AnalysisRepositoryInterface
	results    ResultStore
	jobQueue   queue.JobQueue // For re-enqueueing jobs with delays
	logger     *zap.Logger
	tracer     trace.Tracer
	registry   map[queue.JobType]processorEntry
}

// NewAnalyzer creates a new analyzer and registers the analyze_text processor.
// results and jobQueue may be nil.
func NewAnalyzer(
	aggregator analysis.Aggregator,
	repo database.AnalysisRepositoryInterface,
	results ResultStore,
	jobQueue queue.JobQueue,
	logger *zap.Logger,
) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		aggregator: aggregator,
		repo:       repo,
		results:    results,
		jobQueue:   jobQueue,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		registry:   make(map[queue.JobType]processorEntry),
	}
	a.RegisterProcessor(queue.JobTypeAnalyzeText, a.ProcessAnalyzeTextJob, true)
	return a
}

// RegisterProcessor registers a processor for a job type.
func (a *Analyzer) RegisterProcessor(typ queue.JobType, proc JobProcessor, failAnalysis bool) {
	a.registry[typ] = processorEntry{proc: proc, failAnalysis: failAnalysis}
}

// ProcessAnalyzeTextJob runs the aggregator over a stored analysis and saves the result
func (a *Analyzer) ProcessAnalyzeTextJob(ctx context.Context, job *queue.Job) error {
	if job.AnalysisID == uuid.Nil {
		return fmt.Errorf("%w: analysis_id is required for %s job", errInvalidJob, job.Type)
	}

	if err := a.repo.MarkProcessing(ctx, job.AnalysisID); err != nil {
		if errors.Is(err, database.ErrAnalysisCompleted) {
			a.logger.Info("analysis_already_completed",
				zap.String("job_id", job.ID.String()),
				zap.String("analysis_id", job.AnalysisID.String()),
			)
			return nil
		}
		return fmt.Errorf("failed to mark analysis processing: %w", err)
	}

	stored, err := a.repo.GetByID(ctx, job.AnalysisID)
	if err != nil {
		return fmt.Errorf("failed to load analysis: %w", err)
	}

	result, err := a.aggregator.Aggregate(ctx, stored.Text, stored.UseAverages)
	if err != nil {
		return err
	}

	if err := a.repo.Complete(ctx, stored.ID, result.Rendered, result.Counts, result.TokenCount()); err != nil {
		return fmt.Errorf("failed to store analysis result: %w", err)
	}

	if a.results != nil {
		a.results.Set(ctx, stored.Text, stored.UseAverages, &cache.Entry{
			Rendered:   result.Rendered,
			Counts:     result.Counts,
			TokenCount: result.TokenCount(),
		})
	}

	a.logger.Info("analysis_completed",
		zap.String("job_id", job.ID.String()),
		zap.String("analysis_id", stored.ID.String()),
		zap.Int("tokens", result.TokenCount()),
		zap.Float64("sentences", result.Counts.Sentences()),
		zap.Bool("averaged", result.Averaged),
	)
	return nil
}

// ProcessJob processes a job based on its type using the processor registry.
// It always settles the message: ack on success, requeue while the tagger is
// loading, delayed retry for transient failures and dead-lettering otherwise.
func (a *Analyzer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	ctx = job.ExtractTraceContext(ctx)
	ctx, span := a.tracer.Start(ctx, "worker.process_job",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("wordtag.job_id", job.ID.String()),
			attribute.String("wordtag.job_type", string(job.Type)),
			attribute.Int("wordtag.retry_count", job.RetryCount),
		),
	)
	defer span.End()

	if !job.ShouldProcess() {
		return a.deferJob(ctx, msg, job)
	}

	ent, ok := a.registry[job.Type]
	if !ok {
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Error("failed_to_nack_unknown_job_type",
				zap.String("job_id", job.ID.String()),
				zap.String("job_type", string(job.Type)),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err := ent.proc(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
		return a.handleJobError(ctx, msg, job, ent, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// deferJob handles a job delivered outside its processing window
func (a *Analyzer) deferJob(ctx context.Context, msg queue.MessageInterface, job *queue.Job) error {
	if job.IsExpired() {
		a.logger.Info("job_expired",
			zap.String("job_id", job.ID.String()),
			zap.String("analysis_id", job.AnalysisID.String()),
		)
		a.failAnalysis(ctx, job, "analysis job expired before it could run")
		if nackErr := msg.Nack(false); nackErr != nil {
			return fmt.Errorf("failed to nack expired job: %w", nackErr)
		}
		return nil
	}

	fields := []zap.Field{zap.String("job_id", job.ID.String())}
	if job.NotBefore != nil {
		fields = append(fields, zap.Time("not_before", *job.NotBefore))
	}
	a.logger.Debug("job_not_ready", fields...)

	if a.jobQueue != nil {
		if err := a.jobQueue.Enqueue(ctx, job); err == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				a.logger.Warn("failed_to_ack_deferred_job",
					zap.String("job_id", job.ID.String()),
					zap.String("error", logpkg.SanitizeError(ackErr)),
				)
			}
			return nil
		}
	}
	if nackErr := msg.Nack(true); nackErr != nil {
		return fmt.Errorf("failed to requeue job: %w", nackErr)
	}
	return nil
}

// handleJobError settles a failed job
func (a *Analyzer) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, ent processorEntry, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("analysis_id", job.AnalysisID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.String("error", logpkg.SanitizeError(err)),
	}

	// The model is still loading; the delivery is fine, try again later
	if errors.Is(err, tagger.ErrTaggerNotReady) {
		a.logger.Warn("tagger_not_ready_requeue", fields...)
		if nackErr := msg.Nack(true); nackErr != nil {
			a.logger.Warn("failed_to_nack_job", zap.String("error", logpkg.SanitizeError(nackErr)))
		}
		return fmt.Errorf("tagger not ready (requeued): %w", err)
	}

	if !isPermanent(err) && job.CanRetry() && a.jobQueue != nil {
		retry := job.Retry()
		enqueueErr := a.jobQueue.Enqueue(ctx, retry)
		if enqueueErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				a.logger.Warn("failed_to_ack_retried_job", zap.String("error", logpkg.SanitizeError(ackErr)))
			}
			a.logger.Warn("job_failed_will_retry", append(fields, zap.Time("not_before", *retry.NotBefore))...)
			return fmt.Errorf("job failed (will retry): %w", err)
		}
		a.logger.Error("failed_to_reenqueue_job", append(fields, zap.String("enqueue_error", logpkg.SanitizeError(enqueueErr)))...)
	}

	a.logger.Error("job_failed_sending_to_dlq", fields...)
	if ent.failAnalysis {
		a.failAnalysis(ctx, job, err.Error())
	}
	if nackErr := msg.Nack(false); nackErr != nil {
		a.logger.Warn("failed_to_nack_job_to_dlq", zap.String("error", logpkg.SanitizeError(nackErr)))
	}
	return fmt.Errorf("job failed: %w", err)
}

func (a *Analyzer) failAnalysis(ctx context.Context, job *queue.Job, reason string) {
	if job.AnalysisID == uuid.Nil {
		return
	}
	if err := a.repo.Fail(ctx, job.AnalysisID, logpkg.SanitizeString(reason, logpkg.MaxErrorMessageLength)); err != nil {
		a.logger.Warn("failed_to_mark_analysis_failed",
			zap.String("analysis_id", job.AnalysisID.String()),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}
}

// isPermanent reports whether retrying err cannot help
func isPermanent(err error) bool {
	return errors.Is(err, errInvalidJob) ||
		errors.Is(err, tagger.ErrTaggerUnavailable) ||
		errors.Is(err, database.ErrAnalysisNotFound)
}
