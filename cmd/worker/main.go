package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benvon/wordtag/internal/analysis"
	"github.com/benvon/wordtag/internal/cache"
	"github.com/benvon/wordtag/internal/config"
	"github.com/benvon/wordtag/internal/database"
	"github.com/benvon/wordtag/internal/logger"
	"github.com/benvon/wordtag/internal/queue"
	"github.com/benvon/wordtag/internal/tagger"
	"github.com/benvon/wordtag/internal/telemetry"
	"github.com/benvon/wordtag/internal/version"
	"github.com/benvon/wordtag/internal/workers"
	"go.uber.org/zap"
)

const workerServiceName = "wordtag-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{
		Format:  logger.FormatJSON,
		Debug:   debugMode,
		Service: workerServiceName,
		Version: version.Version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    workerServiceName,
		ServiceVersion: version.Version,
		Endpoint:       cfg.OTELEndpoint,
	}, zapLogger)
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	} else {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
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
	if err := db.EnsureSchema(ctx); err != nil {
		zapLogger.Fatal("failed_to_ensure_schema", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	// Completed results are written to the cache when Redis is available
	var results workers.ResultStore
	if redisClient, err := cache.Connect(ctx, cfg.RedisURL); err != nil {
		zapLogger.Warn("redis_unavailable_results_not_cached", zap.Error(err))
	} else {
		results = cache.NewResultCache(redisClient, cfg.CacheTTL, zapLogger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	}

	jobQueue, err := queue.ConnectRabbitMQ(ctx, cfg.RabbitMQURL, queue.DefaultRetryPolicy, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zapLogger.Info("shutdown_signal_received")
		cancel()
	}()

	// Do not take jobs until the model is loaded; they would only be requeued
	gate := tagger.NewGate(zapLogger)
	gate.Start(ctx, tagger.LoadProse)
	if err := gate.WaitReady(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			zapLogger.Info("worker_stopped_before_tagger_ready")
			return
		}
		zapLogger.Fatal("tagger_failed_to_load", zap.Error(err))
	}

	repo := database.NewAnalysisRepository(db)
	analyzer := workers.NewAnalyzer(
		analysis.NewService(gate, zapLogger),
		repo,
		results,
		jobQueue,
		zapLogger,
	)

	reprocessor := workers.NewReprocessor(repo, jobQueue, workers.DefaultSweepInterval, workers.DefaultStaleAfter, zapLogger)
	go func() {
		if err := reprocessor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("reprocessor_stopped_with_error", zap.Error(err))
		}
	}()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming_messages", zap.Error(err))
	}

	zapLogger.Info("worker_started")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					cancel()
					return
				}

				if err := analyzer.ProcessJob(ctx, msg); err != nil {
					job := msg.GetJob()
					zapLogger.Error("failed_to_process_job",
						zap.Error(err),
						zap.String("job_id", job.ID.String()),
						zap.String("job_type", string(job.Type)),
					)
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	}()

	<-ctx.Done()
	wg.Wait()

	zapLogger.Info("worker_stopped")
}
