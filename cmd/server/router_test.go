package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/wordtag/api"
	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/handlers"
	"github.com/benvon/wordtag/internal/middleware"
	"github.com/benvon/wordtag/internal/models"
	"github.com/benvon/wordtag/internal/tagger"
	"go.uber.org/zap"
)

type stubTagger struct{}

func (stubTagger) Tag(ctx context.Context, text string) (models.TaggedSequence, error) {
	return models.TaggedSequence{
		{Text: "Dogs", Tag: "NNS"},
		{Text: "bark", Tag: "VBP"},
		{Text: ".", Tag: "."},
	}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	service := analysis.NewService(tagger.NewReadyGate(stubTagger{}), logger)

	openAPI, err := handlers.NewOpenAPIHandler(api.OpenAPIYAML)
	if err != nil {
		t.Fatalf("NewOpenAPIHandler: %v", err)
	}
	rateLimit, err := middleware.RateLimit(nil, "100-S", logger)
	if err != nil {
		t.Fatalf("RateLimit: %v", err)
	}

	return newRouter(routerDeps{
		logger:       logger,
		frontendURL:  "https://app.example.com",
		maxTextBytes: 1 << 16,
		health:       handlers.NewHealthChecker(handlers.HealthDeps{}),
		analyses:     handlers.NewAnalysisHandler(nil, service, handlers.Limits{MaxTextBytes: 1 << 16, AsyncThresholdBytes: 1 << 10}, logger),
		tag:          handlers.NewTagHandler(service, nil, 1<<16, logger),
		tagset:       handlers.NewTagsetHandler(),
		openAPI:      openAPI,
		rateLimit:    rateLimit,
	})
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		contentType string
		wantStatus  int
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "version", method: http.MethodGet, path: "/version", wantStatus: http.StatusOK},
		{name: "openapi json", method: http.MethodGet, path: "/api/v1/openapi.json", wantStatus: http.StatusOK},
		{name: "tagset", method: http.MethodGet, path: "/api/v1/tagset", wantStatus: http.StatusOK},
		{
			name:        "tag",
			method:      http.MethodPost,
			path:        "/api/v1/tag",
			body:        `{"text": "Dogs bark."}`,
			contentType: "application/json",
			wantStatus:  http.StatusOK,
		},
		{
			name:        "tag without json content type",
			method:      http.MethodPost,
			path:        "/api/v1/tag",
			body:        `{"text": "Dogs bark."}`,
			contentType: "text/plain",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/nope", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodDelete, path: "/api/v1/tagset", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRouter_SetsRequestIDAndSecurityHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tagset", nil)
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, req)

	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("Expected a request ID header")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRouter_Preflight(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyses", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	versionInfo(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] == "" || body["timestamp"] == "" {
		t.Errorf("unexpected body: %v", body)
	}
}
