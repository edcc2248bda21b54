package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/cache"
	"github.com/benvon/wordtag/internal/database"
	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/queue"
	"github.com/google/uuid"
)

// mockAnalysisRepo is a mock for testing analysis handlers
type mockAnalysisRepo struct {
	t                  *testing.T
	createFunc         func(ctx context.Context, a *models.Analysis) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	listFunc           func(ctx context.Context, page, pageSize int) ([]*models.Analysis, int, error)
	markProcessingFunc func(ctx context.Context, id uuid.UUID) error
	completeFunc       func(ctx context.Context, id uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error
	failFunc           func(ctx context.Context, id uuid.UUID, reason string) error

	// Call tracking (protected by mutex for concurrent access)
	mu          sync.Mutex
	created     []*models.Analysis
	failedIDs   []uuid.UUID
	listedPages [][2]int
}

func (m *mockAnalysisRepo) Create(ctx context.Context, a *models.Analysis) error {
	m.mu.Lock()
	copied := *a
	m.created = append(m.created, &copied)
	m.mu.Unlock()
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
	m.mu.Lock()
	m.listedPages = append(m.listedPages, [2]int{page, pageSize})
	m.mu.Unlock()
	if m.listFunc == nil {
		m.t.Fatal("List called but not configured in test - mock requires explicit setup")
	}
	return m.listFunc(ctx, page, pageSize)
}

func (m *mockAnalysisRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	if m.markProcessingFunc == nil {
		m.t.Fatal("MarkProcessing called but not configured in test - mock requires explicit setup")
	}
	return m.markProcessingFunc(ctx, id)
}

func (m *mockAnalysisRepo) Complete(ctx context.Context, id uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error {
	if m.completeFunc == nil {
		m.t.Fatal("Complete called but not configured in test - mock requires explicit setup")
	}
	return m.completeFunc(ctx, id, rendered, counts, tokenCount)
}

func (m *mockAnalysisRepo) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	m.failedIDs = append(m.failedIDs, id)
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

	mu    sync.Mutex
	calls int
}

func (m *mockAggregator) Aggregate(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.aggregateFunc == nil {
		m.t.Fatal("Aggregate called but not configured in test - mock requires explicit setup")
	}
	return m.aggregateFunc(ctx, text, useAverages)
}

var _ analysis.Aggregator = (*mockAggregator)(nil)

// memoryCache is an in-process ResultCache
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*cache.Entry)}
}

func (c *memoryCache) Get(ctx context.Context, text string, useAverages bool) (*cache.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cache.Key(text, useAverages)]
	return e, ok
}

func (c *memoryCache) Set(ctx context.Context, text string, useAverages bool, entry *cache.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[cache.Key(text, useAverages)] = entry
}

var _ ResultCache = (*memoryCache)(nil)

type mockJobQueue struct {
	mu         sync.Mutex
	enqueueErr error
	enqueued   []*queue.Job
}

func (m *mockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

const sampleText = "The dog barks. The cat sleeps."

// sampleResult is what a tagger would produce for sampleText
func sampleResult() *analysis.Result {
	seq := models.TaggedSequence{
		{Text: "The", Tag: "DT"}, {Text: "dog", Tag: "NN"}, {Text: "barks", Tag: "VBZ"}, {Text: ".", Tag: "."},
		{Text: "The", Tag: "DT"}, {Text: "cat", Tag: "NN"}, {Text: "sleeps", Tag: "VBZ"}, {Text: ".", Tag: "."},
	}
	return &analysis.Result{
		Rendered: seq.Render(),
		Counts:   analysis.Summarize(seq, false),
		Tokens:   seq,
	}
}

// sampleAggregator answers like the prose tagger would: blank text has no
// tokens, anything else is treated as sampleText
func sampleAggregator(t *testing.T) *mockAggregator {
	return &mockAggregator{t: t, aggregateFunc: func(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
		if strings.TrimSpace(text) == "" {
			seq := models.TaggedSequence{}
			return &analysis.Result{Rendered: seq.Render(), Counts: analysis.Summarize(seq, useAverages), Tokens: seq}, nil
		}
		if useAverages {
			res := sampleResult()
			res.Counts = analysis.Summarize(res.Tokens, true)
			res.Averaged = true
			return res, nil
		}
		return sampleResult(), nil
	}}
}
