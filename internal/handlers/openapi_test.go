package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/wordtag/api"
	"github.com/gorilla/mux"
)

func TestOpenAPIHandler(t *testing.T) {
	t.Parallel()

	h, err := NewOpenAPIHandler(api.OpenAPIYAML)
	if err != nil {
		t.Fatalf("NewOpenAPIHandler() error = %v", err)
	}
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("Failed to decode JSON document: %v", err)
	}
	if doc.OpenAPI == "" {
		t.Error("Expected openapi version")
	}
	for _, path := range []string{"/api/v1/analyses", "/api/v1/analyses/{id}/export", "/api/v1/tag", "/api/v1/tagset", "/healthz"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("Expected path %s in document", path)
		}
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))
	if got := w.Header().Get("Content-Type"); got != "application/x-yaml" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestNewOpenAPIHandler_InvalidDocument(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAPIHandler([]byte("paths: [unterminated")); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}
