package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/wordtag/api"
	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/cache"
	"github.com/benvon/wordtag/internal/config"
	"github.com/benvon/wordtag/internal/database"
	"github.com/benvon/wordtag/internal/handlers"
	"github.com/benvon/wordtag/internal/logger"
	"github.com/benvon/wordtag/internal/middleware"
	"github.com/benvon/wordtag/internal/queue"
	"github.com/benvon/wordtag/internal/tagger"
	"github.com/benvon/wordtag/internal/telemetry"
	"github.com/benvon/wordtag/internal/version"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	dlqInterval  = 1 * time.Hour
	dlqRetention = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{
		Format:  logger.FormatJSON,
		Debug:   debugMode,
		Service: serviceName,
		Version: version.Version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Int64("max_text_bytes", cfg.MaxTextBytes),
		zap.Int64("async_threshold_bytes", cfg.AsyncThresholdBytes),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Background context for long-running loops (model load, DLQ GC)
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	shutdownTracing, err := telemetry.Setup(bgCtx, telemetry.Options{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    serviceName,
		ServiceVersion: version.Version,
		Endpoint:       cfg.OTELEndpoint,
	}, zapLogger)
	tracing := err == nil && cfg.OTELEnabled
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
			}
		}()
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.EnsureSchema(bgCtx); err != nil {
		zapLogger.Fatal("failed_to_ensure_schema", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Redis backs the result cache and the rate limiter. Without it the
	// server still runs: no cache, per-process rate limits.
	var redisClient *redis.Client
	var resultCache *cache.ResultCache
	redisClient, err = cache.Connect(bgCtx, cfg.RedisURL)
	if err != nil {
		zapLogger.Warn("redis_unavailable_running_without_cache", zap.Error(err))
		redisClient = nil
	} else {
		resultCache = cache.NewResultCache(redisClient, cfg.CacheTTL, zapLogger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	}

	jobQueue, err := queue.ConnectRabbitMQ(bgCtx, cfg.RabbitMQURL, queue.DefaultRetryPolicy, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	// The model loads in the background; requests before it is ready get 503
	gate := tagger.NewGate(zapLogger)
	gate.Start(bgCtx, tagger.LoadProse)
	service := analysis.NewService(gate, zapLogger)

	repo := database.NewAnalysisRepository(db)

	var results handlers.ResultCache
	var cacheCheck handlers.Checker
	analysisOpts := []handlers.AnalysisHandlerOption{handlers.WithJobQueue(jobQueue)}
	if resultCache != nil {
		results = resultCache
		cacheCheck = handlers.CheckerFunc(resultCache.Ping)
		analysisOpts = append(analysisOpts, handlers.WithResultCache(resultCache))
	}

	openAPIHandler, err := handlers.NewOpenAPIHandler(api.OpenAPIYAML)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	rateLimitMW, err := middleware.RateLimit(redisClient, cfg.RateLimit, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	handler := newRouter(routerDeps{
		logger:       zapLogger,
		frontendURL:  cfg.FrontendURL,
		enableHSTS:   cfg.EnableHSTS,
		maxTextBytes: cfg.MaxTextBytes,
		tracing:      tracing,
		health: handlers.NewHealthChecker(handlers.HealthDeps{
			Database: handlers.CheckerFunc(db.HealthCheck),
			Cache:    cacheCheck,
			Queue:    jobQueue,
			Tagger:   gate,
		}),
		analyses: handlers.NewAnalysisHandler(repo, service, handlers.Limits{
			MaxTextBytes:        cfg.MaxTextBytes,
			AsyncThresholdBytes: cfg.AsyncThresholdBytes,
		}, zapLogger, analysisOpts...),
		tag:       handlers.NewTagHandler(service, results, cfg.MaxTextBytes, zapLogger),
		tagset:    handlers.NewTagsetHandler(),
		openAPI:   openAPIHandler,
		rateLimit: rateLimitMW,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	dlqGC := queue.NewGarbageCollector(jobQueue, dlqInterval, dlqRetention, zapLogger)
	go func() {
		if err := dlqGC.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()
	zapLogger.Info("started_dlq_garbage_collector",
		zap.Duration("interval", dlqInterval),
		zap.Duration("retention", dlqRetention),
	)

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
