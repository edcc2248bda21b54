package handlers

import (
	"context"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/cache"
	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/tagset"
	"go.uber.org/zap"
)

// ResultCache stores tagging results by text
type ResultCache interface {
	Get(ctx context.Context, text string, useAverages bool) (*cache.Entry, bool)
	Set(ctx context.Context, text string, useAverages bool, entry *cache.Entry)
}

// TagResult is a tagging result with its display views
type TagResult struct {
	Rendered   string           `json:"rendered"`
	Counts     models.TagCounts `json:"counts"`
	Averaged   bool             `json:"averaged"`
	TokenCount int              `json:"token_count"`
	Cached     bool             `json:"cached"`
	Summary    []tagset.Row     `json:"summary"`
	Full       []tagset.Row     `json:"full"`
}

// resultSource runs the aggregator behind the result cache
type resultSource struct {
	aggregator analysis.Aggregator
	cache      ResultCache
	logger     *zap.Logger
}

func (s *resultSource) tag(ctx context.Context, text string, useAverages bool) (*TagResult, error) {
	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, text, useAverages); ok {
			s.logger.Debug("analysis_cache_hit", zap.Int("text_bytes", len(text)))
			res := newTagResult(entry.Rendered, entry.Counts, entry.TokenCount, useAverages)
			res.Cached = true
			return res, nil
		}
	}

	result, err := s.aggregator.Aggregate(ctx, text, useAverages)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, text, useAverages, &cache.Entry{
			Rendered:   result.Rendered,
			Counts:     result.Counts,
			TokenCount: result.TokenCount(),
		})
	}
	return newTagResult(result.Rendered, result.Counts, result.TokenCount(), useAverages), nil
}

func newTagResult(rendered string, counts models.TagCounts, tokenCount int, useAverages bool) *TagResult {
	return &TagResult{
		Rendered:   rendered,
		Counts:     counts,
		Averaged:   useAverages && counts.Sentences() != 0,
		TokenCount: tokenCount,
		Summary:    tagset.SummaryView(counts),
		Full:       tagset.FullView(counts),
	}
}
