package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/benvon/wordtag/internal/handlers"
	"github.com/benvon/wordtag/internal/middleware"
	"github.com/benvon/wordtag/internal/version"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "wordtag-api"

// routerDeps are the handlers and settings the HTTP router is assembled from
type routerDeps struct {
	logger       *zap.Logger
	frontendURL  string
	enableHSTS   bool
	maxTextBytes int64
	tracing      bool

	health    *handlers.HealthChecker
	analyses  *handlers.AnalysisHandler
	tag       *handlers.TagHandler
	tagset    *handlers.TagsetHandler
	openAPI   *handlers.OpenAPIHandler
	rateLimit func(http.Handler) http.Handler
}

// newRouter builds the full handler chain. CORS wraps the router so that
// preflight requests are answered for every path, matched or not.
func newRouter(d routerDeps) http.Handler {
	r := mux.NewRouter()

	// gorilla/mux applies middleware in registration order: the first
	// registered is the outermost wrapper.
	if d.tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.Logging(d.logger))
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(middleware.SecurityHeaders(d.enableHSTS))
	r.Use(middleware.MaxRequestSize(d.maxTextBytes))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	// Public routes (health and version are not rate limited)
	r.HandleFunc("/healthz", d.health.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)

	d.openAPI.RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	if d.rateLimit != nil {
		apiRouter.Use(d.rateLimit)
	}
	d.tag.RegisterRoutes(apiRouter)
	d.tagset.RegisterRoutes(apiRouter)
	d.analyses.RegisterRoutes(apiRouter.PathPrefix("/analyses").Subrouter())

	return middleware.CORS(d.frontendURL)(r)
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	body := struct {
		version.Info
		Timestamp string `json:"timestamp"`
	}{
		Info:      version.Get(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	// Nothing useful to do if the client went away
	_ = json.NewEncoder(w).Encode(body)
}
