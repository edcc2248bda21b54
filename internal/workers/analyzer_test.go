package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/cache"
	"github.com/benvon/wordtag/internal/database"
	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/queue"
	"github.com/benvon/wordtag/internal/tagger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sampleText = "The dog barks."

func sampleResult() *analysis.Result {
	return &analysis.Result{
		Rendered: "The/DT dog/NN barks/VBZ ./.",
		Counts: models.TagCounts{
			"DT": 1, "NN": 1, "VBZ": 1, ".": 1,
			models.KeyWords: 4, models.KeySentences: 1,
		},
		Tokens: models.TaggedSequence{
			{Text: "The", Tag: "DT"},
			{Text: "dog", Tag: "NN"},
			{Text: "barks", Tag: "VBZ"},
			{Text: ".", Tag: "."},
		},
	}
}

// happyRepo returns a repo that walks an analysis through the normal lifecycle
func happyRepo(t *testing.T, id uuid.UUID) *mockAnalysisRepo {
	return &mockAnalysisRepo{
		t: t,
		markProcessingFunc: func(ctx context.Context, got uuid.UUID) error {
			return nil
		},
		getByIDFunc: func(ctx context.Context, got uuid.UUID) (*models.Analysis, error) {
			if got != id {
				t.Errorf("GetByID called with %s, expected %s", got, id)
			}
			return &models.Analysis{ID: id, Text: sampleText, Status: models.AnalysisStatusProcessing}, nil
		},
		completeFunc: func(ctx context.Context, got uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error {
			return nil
		},
		failFunc: func(ctx context.Context, got uuid.UUID, reason string) error {
			return nil
		},
	}
}

func TestAnalyzer_ProcessAnalyzeTextJob_Success(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	repo := happyRepo(t, id)
	var gotRendered string
	var gotTokens int
	var gotCounts models.TagCounts
	repo.completeFunc = func(ctx context.Context, got uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error {
		gotRendered, gotCounts, gotTokens = rendered, counts, tokenCount
		return nil
	}
	agg := &mockAggregator{t: t, aggregateFunc: func(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
		if text != sampleText {
			t.Errorf("Aggregate called with %q", text)
		}
		return sampleResult(), nil
	}}
	store := &recordingStore{}

	a := NewAnalyzer(agg, repo, store, nil, zap.NewNop())
	if err := a.ProcessAnalyzeTextJob(context.Background(), queue.NewAnalyzeTextJob(id)); err != nil {
		t.Fatalf("ProcessAnalyzeTextJob() error = %v", err)
	}

	if gotRendered != "The/DT dog/NN barks/VBZ ./." {
		t.Errorf("rendered = %q", gotRendered)
	}
	if gotTokens != 4 {
		t.Errorf("tokenCount = %d, want 4", gotTokens)
	}
	if gotCounts.Words() != 4 {
		t.Errorf("words = %v, want 4", gotCounts.Words())
	}
	entry, ok := store.entries[cache.Key(sampleText, false)]
	if !ok {
		t.Fatal("expected result to be stored in cache")
	}
	if entry.TokenCount != 4 {
		t.Errorf("cached TokenCount = %d, want 4", entry.TokenCount)
	}
}

func TestAnalyzer_ProcessAnalyzeTextJob_AlreadyCompleted(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	repo := &mockAnalysisRepo{
		t: t,
		markProcessingFunc: func(ctx context.Context, got uuid.UUID) error {
			return database.ErrAnalysisCompleted
		},
	}
	agg := &mockAggregator{t: t}

	a := NewAnalyzer(agg, repo, nil, nil, zap.NewNop())
	if err := a.ProcessAnalyzeTextJob(context.Background(), queue.NewAnalyzeTextJob(id)); err != nil {
		t.Fatalf("ProcessAnalyzeTextJob() error = %v, want nil for redelivered job", err)
	}
	if agg.calls != 0 {
		t.Errorf("Aggregate called %d times, want 0", agg.calls)
	}
}

func TestAnalyzer_ProcessAnalyzeTextJob_MissingAnalysisID(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(&mockAggregator{t: t}, &mockAnalysisRepo{t: t}, nil, nil, zap.NewNop())
	err := a.ProcessAnalyzeTextJob(context.Background(), queue.NewAnalyzeTextJob(uuid.Nil))
	if !errors.Is(err, errInvalidJob) {
		t.Fatalf("expected errInvalidJob, got %v", err)
	}
}

func TestAnalyzer_ProcessJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		aggErr       error
		withQueue    bool
		wantErr      bool
		wantAck      bool
		wantNack     bool
		wantRequeue  bool
		wantFail     bool
		wantEnqueued int
	}{
		{
			name:    "success acks",
			wantAck: true,
		},
		{
			name:        "tagger not ready requeues",
			aggErr:      fmt.Errorf("failed to tag text: %w", tagger.ErrTaggerNotReady),
			withQueue:   true,
			wantErr:     true,
			wantNack:    true,
			wantRequeue: true,
		},
		{
			name:      "tagger unavailable dead-letters and fails analysis",
			aggErr:    fmt.Errorf("failed to tag text: %w", tagger.ErrTaggerUnavailable),
			withQueue: true,
			wantErr:   true,
			wantNack:  true,
			wantFail:  true,
		},
		{
			name:         "transient error schedules a retry",
			aggErr:       errors.New("connection reset"),
			withQueue:    true,
			wantErr:      true,
			wantAck:      true,
			wantEnqueued: 1,
		},
		{
			name:     "transient error without queue dead-letters",
			aggErr:   errors.New("connection reset"),
			wantErr:  true,
			wantNack: true,
			wantFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id := uuid.New()
			repo := happyRepo(t, id)
			agg := &mockAggregator{t: t, aggregateFunc: func(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
				if tt.aggErr != nil {
					return nil, tt.aggErr
				}
				return sampleResult(), nil
			}}
			var jq queue.JobQueue
			mq := &mockJobQueue{}
			if tt.withQueue {
				jq = mq
			}

			a := NewAnalyzer(agg, repo, nil, jq, zap.NewNop())
			msg := &mockMessage{job: queue.NewAnalyzeTextJob(id)}
			err := a.ProcessJob(context.Background(), msg)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessJob() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", msg.acked, tt.wantAck)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("nacked = %v, want %v", msg.nacked, tt.wantNack)
			}
			if msg.requeued != tt.wantRequeue {
				t.Errorf("requeued = %v, want %v", msg.requeued, tt.wantRequeue)
			}
			if got := len(repo.failCalls) > 0; got != tt.wantFail {
				t.Errorf("analysis failed = %v, want %v", got, tt.wantFail)
			}
			if len(mq.enqueued) != tt.wantEnqueued {
				t.Errorf("enqueued %d jobs, want %d", len(mq.enqueued), tt.wantEnqueued)
			}
		})
	}
}

func TestAnalyzer_ProcessJob_RetryIsDelayed(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	agg := &mockAggregator{t: t, aggregateFunc: func(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
		return nil, errors.New("temporary failure")
	}}
	mq := &mockJobQueue{}
	a := NewAnalyzer(agg, happyRepo(t, id), nil, mq, zap.NewNop())

	job := queue.NewAnalyzeTextJob(id)
	_ = a.ProcessJob(context.Background(), &mockMessage{job: job})

	if len(mq.enqueued) != 1 {
		t.Fatalf("expected one retry job, got %d", len(mq.enqueued))
	}
	retry := mq.enqueued[0]
	if retry.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", retry.RetryCount)
	}
	if retry.NotBefore == nil || !retry.NotBefore.After(time.Now()) {
		t.Errorf("expected NotBefore in the future, got %v", retry.NotBefore)
	}
	if job.RetryCount != 0 {
		t.Errorf("original job mutated: RetryCount = %d", job.RetryCount)
	}
}

func TestAnalyzer_ProcessJob_RetriesExhausted(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	agg := &mockAggregator{t: t, aggregateFunc: func(ctx context.Context, text string, useAverages bool) (*analysis.Result, error) {
		return nil, errors.New("temporary failure")
	}}
	repo := happyRepo(t, id)
	mq := &mockJobQueue{}
	a := NewAnalyzer(agg, repo, nil, mq, zap.NewNop())

	job := queue.NewAnalyzeTextJob(id)
	job.RetryCount = job.MaxRetries
	msg := &mockMessage{job: job}
	if err := a.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected error")
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("expected dead-letter nack, got nacked=%v requeued=%v", msg.nacked, msg.requeued)
	}
	if len(mq.enqueued) != 0 {
		t.Errorf("expected no retry, got %d", len(mq.enqueued))
	}
	if len(repo.failCalls) != 1 || !strings.Contains(repo.failCalls[0], "temporary failure") {
		t.Errorf("fail reason = %v", repo.failCalls)
	}
}

func TestAnalyzer_ProcessJob_UnknownType(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(&mockAggregator{t: t}, &mockAnalysisRepo{t: t}, nil, nil, zap.NewNop())
	msg := &mockMessage{job: queue.NewJob("unknown", uuid.New())}
	if err := a.ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown job type")
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("expected nack without requeue, got nacked=%v requeued=%v", msg.nacked, msg.requeued)
	}
}

func TestAnalyzer_ProcessJob_NotYetDue(t *testing.T) {
	t.Parallel()

	later := time.Now().Add(time.Hour)

	t.Run("re-enqueues when queue available", func(t *testing.T) {
		t.Parallel()
		mq := &mockJobQueue{}
		a := NewAnalyzer(&mockAggregator{t: t}, &mockAnalysisRepo{t: t}, nil, mq, zap.NewNop())
		job := queue.NewAnalyzeTextJob(uuid.New())
		job.NotBefore = &later
		msg := &mockMessage{job: job}

		if err := a.ProcessJob(context.Background(), msg); err != nil {
			t.Fatalf("ProcessJob() error = %v", err)
		}
		if !msg.acked || len(mq.enqueued) != 1 {
			t.Errorf("expected ack and re-enqueue, got acked=%v enqueued=%d", msg.acked, len(mq.enqueued))
		}
	})

	t.Run("requeues when enqueue fails", func(t *testing.T) {
		t.Parallel()
		mq := &mockJobQueue{enqueueErr: errors.New("channel closed")}
		a := NewAnalyzer(&mockAggregator{t: t}, &mockAnalysisRepo{t: t}, nil, mq, zap.NewNop())
		job := queue.NewAnalyzeTextJob(uuid.New())
		job.NotBefore = &later
		msg := &mockMessage{job: job}

		if err := a.ProcessJob(context.Background(), msg); err != nil {
			t.Fatalf("ProcessJob() error = %v", err)
		}
		if !msg.nacked || !msg.requeued {
			t.Errorf("expected requeue, got nacked=%v requeued=%v", msg.nacked, msg.requeued)
		}
	})
}

func TestAnalyzer_ProcessJob_Expired(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	repo := happyRepo(t, id)
	agg := &mockAggregator{t: t}
	a := NewAnalyzer(agg, repo, nil, nil, zap.NewNop())

	earlier := time.Now().Add(-time.Minute)
	job := queue.NewAnalyzeTextJob(id)
	job.NotAfter = &earlier
	msg := &mockMessage{job: job}

	if err := a.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("expected dead-letter nack, got nacked=%v requeued=%v", msg.nacked, msg.requeued)
	}
	if len(repo.failCalls) != 1 {
		t.Errorf("expected analysis to be failed once, got %d", len(repo.failCalls))
	}
	if agg.calls != 0 {
		t.Errorf("Aggregate called for expired job")
	}
}

func TestAnalyzer_RegisterProcessor(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(&mockAggregator{t: t}, &mockAnalysisRepo{t: t}, nil, nil, zap.NewNop())
	called := false
	a.RegisterProcessor("noop", func(ctx context.Context, job *queue.Job) error {
		called = true
		return nil
	}, false)

	msg := &mockMessage{job: queue.NewJob("noop", uuid.Nil)}
	if err := a.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if !called || !msg.acked {
		t.Errorf("expected custom processor to run and ack, called=%v acked=%v", called, msg.acked)
	}
}
