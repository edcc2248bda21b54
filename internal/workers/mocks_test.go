package workers

import (
	"context"
	"sync"
	"testing"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/cache"
	"github.com/benvon/wordtag/internal/database"
	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/queue"
	"github.com/google/uuid"
)

// mockAnalysisRepo is a mock for testing the analyzer worker
type mockAnalysisRepo struct {
	t                  *testing.T
	createFunc         func(ctx context.Context, a *models.Analysis) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	listFunc           func(ctx context.Context, page, pageSize int) ([]*models.Analysis, int, error)
	markProcessingFunc func(ctx context.Context, id uuid.UUID) error
	completeFunc       func(ctx context.Context, id uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error
	failFunc           func(ctx context.Context, id uuid.UUID, reason string) error

	// Call tracking (protected by mutex for concurrent access)
	mu                  sync.Mutex
	markProcessingCalls []uuid.UUID
	completeCalls       []uuid.UUID
	failCalls           []string
}

func (m *mockAnalysisRepo) Create(ctx context.Context, a *models.Analysis) error {
	if m.createFunc == nil {
		m.t.Fatal("Create called but not configured in test - mock requires explicit setup")
	}
	return m.createFunc(ctx, a)
}

func (m *mockAnalysisRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	if m.getByIDFunc == nil {
		m.t.Fatal("GetByID called but not configured in test - mock requires explicit setup")
	}
	return m.getByIDFunc(ctx, id)
}

func (m *mockAnalysisRepo) List(ctx context.Context, page, pageSize int) ([]*models.Analysis, int, error) {
	if m.listFunc == nil {
		m.t.Fatal("List called but not configured in test - mock requires explicit setup")
	}
	return m.listFunc(ctx, page, pageSize)
}

func (m *mockAnalysisRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.markProcessingCalls = append(m.markProcessingCalls, id)
	m.mu.Unlock()
	if m.markProcessingFunc == nil {
		m.t.Fatal("MarkProcessing called but not configured in test - mock requires explicit setup")
	}
	return m.markProcessingFunc(ctx, id)
}

func (m *mockAnalysisRepo) Complete(ctx context.Context, id uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error {
	m.mu.Lock()
	m.completeCalls = append(m.completeCalls, id)
	m.mu.Unlock()
	if m.completeFunc == nil {
		m.t.Fatal("Complete called but not configured in test - mock requires explicit setup")
	}
	return m.completeFunc(ctx, id, rendered, counts, tokenCount)
}

func (m *mockAnalysisRepo) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	m.failCalls = append(m.failCalls, reason)
	m.mu.Unlock()
	if m.failFunc == nil {
		m.t.Fatal("Fail called but not configured in test - mock requires explicit setup")
	}
	return m.failFunc(ctx, id, reason)
}

var _ database.AnalysisRepositoryInterface = (*mockAnalysisRepo)(nil)

type mockAggregator struct {
	t             *testing.T
	aggregateFunc func(ctx context.Context, text string, useAverages bool) (*analysis.Result, error)
	calls         int
}

func (m *mockAggregator) Aggregate(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
	m.calls++
	if m.aggregateFunc == nil {
		m.t.Fatal("Aggregate called but not configured in test - mock requires explicit setup")
	}
	return m.aggregateFunc(ctx, text, useAverages)
}

var _ analysis.Aggregator = (*mockAggregator)(nil)

// mockMessage records how the worker settled a delivery
type mockMessage struct {
	job       *queue.Job
	acked     bool
	nacked    bool
	requeued  bool
	ackErr    error
	nackError error
}

func (m *mockMessage) Ack() error {
	m.acked = true
	return m.ackErr
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked = true
	m.requeued = requeue
	return m.nackError
}

func (m *mockMessage) GetJob() *queue.Job {
	return m.job
}

var _ queue.MessageInterface = (*mockMessage)(nil)

type mockJobQueue struct {
	enqueueErr error
	enqueued   []*queue.Job
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (m *mockJobQueue) Close() error { return nil }

func (m *mockJobQueue) HealthCheck(ctx context.Context) error { return nil }

var _ queue.JobQueue = (*mockJobQueue)(nil)

type recordingStore struct {
	entries map[string]*cache.Entry
}

func (r *recordingStore) Set(ctx context.Context, text string, useAverages bool, entry *cache.Entry) {
	if r.entries == nil {
		r.entries = make(map[string]*cache.Entry)
	}
	r.entries[cache.Key(text, useAverages)] = entry
}
