package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/database"
	"github.com/benvon/wordtag/internal/export"
	logpkg "github.com/benvon/wordtag/internal/logger"
	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/queue"
	"github.com/benvon/wordtag/internal/request"
	"github.com/benvon/wordtag/internal/tagset"
	"github.com/benvon/wordtag/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 20
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 100
)

// CreateAnalysisRequest represents a create analysis request
type CreateAnalysisRequest struct {
	Text        *string `json:"text" validate:"required"`
	UseAverages bool    `json:"use_averages"`
	// Async queues the analysis even when the text is small
	Async bool `json:"async"`
}

// AnalysisResponse is a stored analysis with its display views
type AnalysisResponse struct {
	*models.Analysis
	Summary []tagset.Row `json:"summary,omitempty"`
	Full    []tagset.Row `json:"full,omitempty"`
}

// ListAnalysesResponse represents the paginated response for listing analyses
type ListAnalysesResponse struct {
	Analyses   []*models.Analysis `json:"analyses"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// Limits bound the texts the analysis API accepts
type Limits struct {
	MaxTextBytes        int64
	AsyncThresholdBytes int64
}

// AnalysisHandler handles analysis requests
type AnalysisHandler struct {
	repo     database.AnalysisRepositoryInterface
	results  *resultSource
	jobQueue queue.JobQueue
	limits   Limits
	logger   *zap.Logger
}

// AnalysisHandlerOption configures an AnalysisHandler
type AnalysisHandlerOption func(*AnalysisHandler)

// WithResultCache serves repeated texts from cache
func WithResultCache(c ResultCache) AnalysisHandlerOption {
	return func(h *AnalysisHandler) {
		h.results.cache = c
	}
}

// WithJobQueue enables asynchronous analyses
func WithJobQueue(q queue.JobQueue) AnalysisHandlerOption {
	return func(h *AnalysisHandler) {
		h.jobQueue = q
	}
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(
	repo database.AnalysisRepositoryInterface,
	aggregator analysis.Aggregator,
	limits Limits,
	logger *zap.Logger,
	opts ...AnalysisHandlerOption,
) *AnalysisHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &AnalysisHandler{
		repo:    repo,
		results: &resultSource{aggregator: aggregator, logger: logger},
		limits:  limits,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers analysis routes
// The router should already have the /analyses prefix (e.g., from apiRouter.PathPrefix("/analyses"))
func (h *AnalysisHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListAnalyses).Methods(http.MethodGet)
	r.HandleFunc("", h.CreateAnalysis).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.GetAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/{id}/export", h.ExportAnalysis).Methods(http.MethodGet)
}

// CreateAnalysis tags small texts immediately and queues large ones
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.Message(err))
		return
	}
	text := *req.Text
	if !checkTextSize(w, text, h.limits.MaxTextBytes) {
		return
	}
	if err := validation.CheckStorable(text); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	async := req.Async || (h.limits.AsyncThresholdBytes > 0 && int64(len(text)) > h.limits.AsyncThresholdBytes)
	if async && h.jobQueue != nil {
		h.createAsync(w, r, text, req.UseAverages)
		return
	}

	ctx := r.Context()
	result, err := h.results.tag(ctx, text, req.UseAverages)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "analyze text")
		return
	}

	completedAt := time.Now()
	a := &models.Analysis{
		ID:          uuid.New(),
		Text:        text,
		UseAverages: req.UseAverages,
		Status:      models.AnalysisStatusCompleted,
		Rendered:    result.Rendered,
		Counts:      result.Counts,
		TokenCount:  result.TokenCount,
		CompletedAt: &completedAt,
	}
	if err := h.repo.Create(ctx, a); err != nil {
		respondServiceError(w, r, h.logger, err, "store analysis")
		return
	}

	h.logger.Info("analysis_created",
		zap.String("request_id", request.RequestIDFromContext(ctx)),
		zap.String("analysis_id", a.ID.String()),
		zap.Int("tokens", a.TokenCount),
		zap.Bool("cached", result.Cached),
	)
	h.logger.Debug("analysis_text_excerpt",
		zap.String("analysis_id", a.ID.String()),
		zap.String("excerpt", logpkg.SanitizeText(text)),
	)

	a.Text = ""
	w.Header().Set("Location", "/api/v1/analyses/"+a.ID.String())
	respondJSON(w, http.StatusCreated, newAnalysisResponse(a))
}

func (h *AnalysisHandler) createAsync(w http.ResponseWriter, r *http.Request, text string, useAverages bool) {
	ctx := r.Context()
	a := &models.Analysis{
		ID:          uuid.New(),
		Text:        text,
		UseAverages: useAverages,
		Status:      models.AnalysisStatusPending,
	}
	if err := h.repo.Create(ctx, a); err != nil {
		respondServiceError(w, r, h.logger, err, "store analysis")
		return
	}

	job := queue.NewAnalyzeTextJob(a.ID)
	job.InjectTraceContext(ctx)
	if err := h.jobQueue.Enqueue(ctx, job); err != nil {
		h.logger.Error("failed_to_enqueue_analysis_job",
			zap.String("request_id", request.RequestIDFromContext(ctx)),
			zap.String("analysis_id", a.ID.String()),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		if failErr := h.repo.Fail(ctx, a.ID, "could not queue analysis"); failErr != nil {
			h.logger.Warn("failed_to_mark_analysis_failed",
				zap.String("analysis_id", a.ID.String()),
				zap.String("error", logpkg.SanitizeError(failErr)),
			)
		}
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Could not queue analysis, retry later")
		return
	}

	h.logger.Info("analysis_queued",
		zap.String("request_id", request.RequestIDFromContext(ctx)),
		zap.String("analysis_id", a.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Int("text_bytes", len(text)),
	)

	a.Text = ""
	w.Header().Set("Location", "/api/v1/analyses/"+a.ID.String())
	respondJSON(w, http.StatusAccepted, newAnalysisResponse(a))
}

// ListAnalyses lists analyses with pagination, without their text
func (h *AnalysisHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	page := validation.Page{Page: 1, PageSize: DefaultPageSize}
	var err error
	if p := r.URL.Query().Get("page"); p != "" {
		if page.Page, err = strconv.Atoi(p); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "page must be a number")
			return
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if page.PageSize, err = strconv.Atoi(ps); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "page_size must be a number")
			return
		}
	}
	if err := validation.Validate.Struct(page); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.Message(err))
		return
	}

	analyses, total, err := h.repo.List(r.Context(), page.Page, page.PageSize)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "retrieve analyses")
		return
	}

	totalPages := (total + page.PageSize - 1) / page.PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	respondJSON(w, http.StatusOK, ListAnalysesResponse{
		Analyses:   analyses,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetAnalysis retrieves an analysis by ID
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newAnalysisResponse(a))
}

// ExportAnalysis downloads the counts of a completed analysis as text or CSV
func (h *AnalysisHandler) ExportAnalysis(w http.ResponseWriter, r *http.Request) {
	rawFormat := r.URL.Query().Get("format")
	if err := validation.ValidateExportFormat(rawFormat); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	format, _ := export.ParseFormat(rawFormat)

	a, ok := h.loadAnalysis(w, r)
	if !ok {
		return
	}
	if a.Status != models.AnalysisStatusCompleted {
		respondJSONError(w, http.StatusConflict, "Conflict",
			fmt.Sprintf("Analysis is %s, only completed analyses can be exported", a.Status))
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, a.Counts); err != nil {
		respondServiceError(w, r, h.logger, err, "export analysis")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="analysis-%s%s"`, a.ID, format.Extension()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *AnalysisHandler) loadAnalysis(w http.ResponseWriter, r *http.Request) (*models.Analysis, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid analysis ID")
		return nil, false
	}

	a, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrAnalysisNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Analysis not found")
			return nil, false
		}
		respondServiceError(w, r, h.logger, err, "retrieve analysis")
		return nil, false
	}
	return a, true
}

func newAnalysisResponse(a *models.Analysis) AnalysisResponse {
	resp := AnalysisResponse{Analysis: a}
	if a.Status == models.AnalysisStatusCompleted {
		resp.Summary = tagset.SummaryView(a.Counts)
		resp.Full = tagset.FullView(a.Counts)
	}
	return resp
}
