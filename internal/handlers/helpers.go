package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/benvon/wordtag/internal/database"
	logpkg "github.com/benvon/wordtag/internal/logger"
	"github.com/benvon/wordtag/internal/request"
	"github.com/benvon/wordtag/internal/tagger"
	"go.uber.org/zap"
)

const maxClientMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage keeps client-facing messages short
func sanitizeErrorMessage(message string) string {
	if len(message) <= maxClientMessageLength {
		return message
	}
	n := maxClientMessageLength
	for n > 0 && !utf8.RuneStart(message[n]) {
		n--
	}
	return message[:n] + "..."
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// decodeJSON decodes the request body into dst and writes the error response
// itself when decoding fails
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps domain errors to HTTP responses. action completes
// the sentence "Failed to ..." for unexpected errors.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, tagger.ErrTaggerNotReady):
		w.Header().Set("Retry-After", "5")
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The tagger is still loading, retry shortly")
	case errors.Is(err, tagger.ErrTaggerUnavailable):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The tagger is unavailable")
	case errors.Is(err, database.ErrAnalysisNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Analysis not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Request timed out")
	default:
		logger.Error("request_failed",
			zap.String("request_id", request.RequestIDFromContext(r.Context())),
			zap.String("action", action),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to "+action)
	}
}
