package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisStatus represents the processing state of a stored analysis
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// Analysis is a persisted tagging request and, once completed, its result
type Analysis struct {
	ID          uuid.UUID      `json:"id"`
	Text        string         `json:"text,omitempty"`
	UseAverages bool           `json:"use_averages"`
	Status      AnalysisStatus `json:"status"`
	Rendered    string         `json:"rendered,omitempty"`
	Counts      TagCounts      `json:"counts,omitempty"`
	TokenCount  int            `json:"token_count"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the analysis will not change any more
func (a *Analysis) IsTerminal() bool {
	return a.Status == AnalysisStatusCompleted || a.Status == AnalysisStatusFailed
}
