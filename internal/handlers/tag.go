package handlers

import (
	"fmt"
	"net/http"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TagRequest represents a stateless tagging request
type TagRequest struct {
	// Text is tagged exactly as sent. An empty string is valid input; only
	// a missing field is rejected.
	Text        *string `json:"text" validate:"required"`
	UseAverages bool    `json:"use_averages"`
}

// TagHandler tags text without storing it
type TagHandler struct {
	results      *resultSource
	maxTextBytes int64
	logger       *zap.Logger
}

// NewTagHandler creates a new tag handler. resultCache may be nil.
func NewTagHandler(aggregator analysis.Aggregator, resultCache ResultCache, maxTextBytes int64, logger *zap.Logger) *TagHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TagHandler{
		results:      &resultSource{aggregator: aggregator, cache: resultCache, logger: logger},
		maxTextBytes: maxTextBytes,
		logger:       logger,
	}
}

// RegisterRoutes registers tag routes on the API router
func (h *TagHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tag", h.Tag).Methods(http.MethodPost)
}

// Tag handles POST /api/v1/tag
func (h *TagHandler) Tag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validation.Message(err))
		return
	}
	if !checkTextSize(w, *req.Text, h.maxTextBytes) {
		return
	}

	result, err := h.results.tag(r.Context(), *req.Text, req.UseAverages)
	if err != nil {
		respondServiceError(w, r, h.logger, err, "tag text")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// checkTextSize enforces the size limit, writing the 413 response itself
// when the text is rejected
func checkTextSize(w http.ResponseWriter, text string, maxTextBytes int64) bool {
	if maxTextBytes > 0 && int64(len(text)) > maxTextBytes {
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
			fmt.Sprintf("Text exceeds maximum size of %d bytes", maxTextBytes))
		return false
	}
	return true
}
