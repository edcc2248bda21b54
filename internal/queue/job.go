package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeAnalyzeText tags a stored analysis and saves its counts
	JobTypeAnalyzeText JobType = "analyze_text"
)

const (
	defaultMaxRetries = 3
	baseRetryDelay    = 2 * time.Second
	maxRetryDelay     = 5 * time.Minute
)

// Job represents a job in the queue
type Job struct {
	ID           uuid.UUID         `json:"id"`
	Type         JobType           `json:"type"`
	AnalysisID   uuid.UUID         `json:"analysis_id"`
	NotBefore    *time.Time        `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter     *time.Time        `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	TraceContext map[string]string `json:"trace_context,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, analysisID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		AnalysisID: analysisID,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: defaultMaxRetries,
	}
}

// NewAnalyzeTextJob creates a job that analyzes the stored text of analysisID
func NewAnalyzeTextJob(analysisID uuid.UUID) *Job {
	return NewJob(JobTypeAnalyzeText, analysisID)
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryDelay is the wait before the next attempt: 2s, 4s, 8s, ... capped at 5m
func (j *Job) RetryDelay() time.Duration {
	d := baseRetryDelay
	for i := 0; i < j.RetryCount; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

// Retry returns a copy of the job scheduled for its next attempt
func (j *Job) Retry() *Job {
	next := *j
	next.RetryCount = j.RetryCount + 1
	notBefore := time.Now().Add(j.RetryDelay())
	next.NotBefore = &notBefore
	return &next
}

// InjectTraceContext stores the span context of ctx in the job so the worker
// can continue the trace
func (j *Job) InjectTraceContext(ctx context.Context) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		j.TraceContext = carrier
	}
}

// ExtractTraceContext returns ctx carrying the span context stored in the job
func (j *Job) ExtractTraceContext(ctx context.Context) context.Context {
	if len(j.TraceContext) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(j.TraceContext))
}
