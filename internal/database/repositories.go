package database

import (
	"context"

	"github.com/benvon/wordtag/internal/models"
	"github.com/google/uuid"
)

// AnalysisRepositoryInterface defines the interface for analysis repository operations
// This interface enables better testability by allowing mock implementations
type AnalysisRepositoryInterface interface {
	Create(ctx context.Context, a *models.Analysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error)
	List(ctx context.Context, page, pageSize int) ([]*models.Analysis, int, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

// Ensure concrete types implement the interfaces
var (
	_ AnalysisRepositoryInterface = (*AnalysisRepository)(nil)
)
