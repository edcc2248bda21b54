package handlers

import (
	"net/http"

	"github.com/benvon/wordtag/internal/tagset"
	"github.com/gorilla/mux"
)

// TagsetResponse lists the tags and their display grouping
type TagsetResponse struct {
	Tags       []tagset.Tag      `json:"tags"`
	Categories []tagset.Category `json:"categories"`
}

// TagsetHandler serves the tag catalogue
type TagsetHandler struct{}

// NewTagsetHandler creates a new tagset handler
func NewTagsetHandler() *TagsetHandler {
	return &TagsetHandler{}
}

// RegisterRoutes registers tagset routes on the API router
func (h *TagsetHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tagset", h.GetTagset).Methods(http.MethodGet)
}

// GetTagset handles GET /api/v1/tagset
func (h *TagsetHandler) GetTagset(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, TagsetResponse{
		Tags:       tagset.Tags(),
		Categories: tagset.Categories(),
	})
}
