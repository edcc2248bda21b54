package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/tagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/wordtag/internal/analysis"

// Result is the outcome of one tagging request. It is never shared between
// requests.
type Result struct {
	Rendered string                `json:"rendered"`
	Counts   models.TagCounts      `json:"counts"`
	Tokens   models.TaggedSequence `json:"-"`
	// Averaged is true when the counts were normalized per sentence
	Averaged bool `json:"averaged"`
}

// TokenCount returns the number of tokens the tagger produced
func (r *Result) TokenCount() int {
	return len(r.Tokens)
}

// Aggregator is implemented by Service. Handlers and workers depend on it.
type Aggregator interface {
	Aggregate(ctx context.Context, text string, useAverages bool) (*Result, error)
}

// Service runs the tagger and aggregates its output
type Service struct {
	tagger tagger.Tagger
	logger *zap.Logger
	tracer trace.Tracer
}

// NewService creates a new aggregation service
func NewService(t tagger.Tagger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tagger: t,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Aggregate tags text and returns its rendering and tag counts. Tagger
// readiness errors are returned unchanged so callers can tell them apart
// from an input without tokens.
func (s *Service) Aggregate(ctx context.Context, text string, useAverages bool) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.aggregate",
		trace.WithAttributes(
			attribute.Int("wordtag.text_bytes", len(text)),
			attribute.Bool("wordtag.use_averages", useAverages),
		),
	)
	defer span.End()

	start := time.Now()
	seq, err := s.tagger.Tag(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tagging failed")
		return nil, fmt.Errorf("failed to tag text: %w", err)
	}

	result := &Result{
		Rendered: seq.Render(),
		Counts:   Summarize(seq, useAverages),
		Tokens:   seq,
	}
	result.Averaged = useAverages && result.Counts.Sentences() != 0

	span.SetAttributes(
		attribute.Int("wordtag.tokens", len(seq)),
		attribute.Float64("wordtag.sentences", result.Counts.Sentences()),
	)
	s.logger.Debug("analysis_aggregated",
		zap.Int("tokens", len(seq)),
		zap.Float64("sentences", result.Counts.Sentences()),
		zap.Bool("averaged", result.Averaged),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

var _ Aggregator = (*Service)(nil)
