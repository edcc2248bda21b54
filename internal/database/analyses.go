package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/wordtag/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrAnalysisNotFound is returned when no analysis has the requested ID
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrAnalysisExists is returned when creating an analysis whose ID is taken
	ErrAnalysisExists = errors.New("analysis already exists")
	// ErrAnalysisCompleted is returned when a finished analysis is picked up again
	ErrAnalysisCompleted = errors.New("analysis already completed")
)

const uniqueViolation = "23505"

// AnalysisRepository handles analysis database operations
type AnalysisRepository struct {
	db *DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create inserts a new analysis. Counts are stored as given, so completed
// analyses can be created in one step.
func (r *AnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	query := `
		INSERT INTO analyses (id, source_text, use_averages, status, rendered, counts, token_count, error, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	countsJSON, err := marshalCounts(a.Counts)
	if err != nil {
		return err
	}

	now := time.Now()
	var completedAt sql.NullTime
	if a.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *a.CompletedAt, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, query,
		a.ID,
		a.Text,
		a.UseAverages,
		a.Status,
		a.Rendered,
		countsJSON,
		a.TokenCount,
		a.Error,
		now,
		now,
		completedAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrAnalysisExists, a.ID)
		}
		return fmt.Errorf("failed to create analysis: %w", err)
	}

	return nil
}

// GetByID retrieves an analysis including its source text
func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	query := `
		SELECT id, source_text, use_averages, status, rendered, counts, token_count, error, created_at, updated_at, completed_at
		FROM analyses
		WHERE id = $1
	`

	a, err := scanAnalysis(r.db.QueryRowContext(ctx, query, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// List returns one page of analyses, newest first, without source text.
// It also returns the total number of analyses.
func (r *AnalysisRepository) List(ctx context.Context, page, pageSize int) ([]*models.Analysis, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	query := `
		SELECT id, use_averages, status, rendered, counts, token_count, error, created_at, updated_at, completed_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	analyses := make([]*models.Analysis, 0, pageSize)
	for rows.Next() {
		a, err := scanAnalysis(rows, false)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating analyses: %w", err)
	}

	return analyses, total, nil
}

// ListStalePending returns up to limit analyses still pending since before
// cutoff, oldest first. Their jobs were most likely lost.
func (r *AnalysisRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM analyses
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, models.AnalysisStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale analyses: %w", err)
	}
	return ids, nil
}

// Touch bumps updated_at so a requeued analysis is not picked up again
// before its new job had a chance to run
func (r *AnalysisRepository) Touch(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "touch", `UPDATE analyses SET updated_at = NOW() WHERE id = $1`, id)
}

// MarkProcessing moves an analysis to processing. Completed analyses are
// left untouched and reported with ErrAnalysisCompleted.
func (r *AnalysisRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE analyses
		SET status = $2, error = '', updated_at = NOW()
		WHERE id = $1 AND status <> $3
	`

	res, err := r.db.ExecContext(ctx, query, id, models.AnalysisStatusProcessing, models.AnalysisStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark analysis processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrAnalysisCompleted, id)
	}
	return nil
}

// Complete stores the result of an analysis
func (r *AnalysisRepository) Complete(ctx context.Context, id uuid.UUID, rendered string, counts models.TagCounts, tokenCount int) error {
	countsJSON, err := marshalCounts(counts)
	if err != nil {
		return err
	}

	query := `
		UPDATE analyses
		SET status = $2, rendered = $3, counts = $4, token_count = $5, error = '', updated_at = NOW(), completed_at = NOW()
		WHERE id = $1
	`

	return r.execOne(ctx, "complete", query, id, models.AnalysisStatusCompleted, rendered, countsJSON, tokenCount)
}

// Fail records why an analysis could not be completed
func (r *AnalysisRepository) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE analyses
		SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1
	`

	return r.execOne(ctx, "fail", query, id, models.AnalysisStatusFailed, reason)
}

func (r *AnalysisRepository) execOne(ctx context.Context, op, query string, id uuid.UUID, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to %s analysis: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAnalysisNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner, withText bool) (*models.Analysis, error) {
	a := &models.Analysis{}
	var countsJSON []byte
	var completedAt sql.NullTime

	dest := []any{&a.ID}
	if withText {
		dest = append(dest, &a.Text)
	}
	dest = append(dest,
		&a.UseAverages,
		&a.Status,
		&a.Rendered,
		&countsJSON,
		&a.TokenCount,
		&a.Error,
		&a.CreatedAt,
		&a.UpdatedAt,
		&completedAt,
	)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	counts, err := unmarshalCounts(countsJSON)
	if err != nil {
		return nil, err
	}
	a.Counts = counts

	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

func marshalCounts(counts models.TagCounts) ([]byte, error) {
	if counts == nil {
		counts = models.TagCounts{}
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal counts: %w", err)
	}
	return data, nil
}

func unmarshalCounts(data []byte) (models.TagCounts, error) {
	counts := make(models.TagCounts)
	if len(data) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal counts: %w", err)
	}
	return counts, nil
}
