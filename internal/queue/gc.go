package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const maxPurgeTime = 2 * time.Minute

// GarbageCollector removes dead-lettered analysis jobs once they are older
// than the retention period. Their analyses are already marked failed, so
// the messages are only kept around for inspection.
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	// consecutive failed passes, only touched by the Start goroutine
	failures int
}

// NewGarbageCollector creates a garbage collector. A nil purger disables it.
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger.With(zap.String("component", "dlq_gc")),
	}
}

// Start purges once right away and then every interval until ctx is cancelled
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if gc.purger == nil {
		gc.logger.Info("dlq_gc_disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	gc.runPass(ctx)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			gc.runPass(ctx)
		}
	}
}

func (gc *GarbageCollector) runPass(ctx context.Context) {
	if _, err := gc.Collect(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		gc.failures++
		gc.logger.Warn("dlq_gc_failed",
			zap.Error(err),
			zap.Int("consecutive_failures", gc.failures),
		)
		return
	}
	gc.failures = 0
}

// Collect runs one purge pass and returns how many dead-lettered jobs it
// removed. A pass never runs longer than the interval.
func (gc *GarbageCollector) Collect(ctx context.Context) (int, error) {
	if gc.purger == nil {
		return 0, nil
	}

	timeout := maxPurgeTime
	if gc.interval > 0 {
		timeout = min(timeout, gc.interval)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	purged, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return purged, fmt.Errorf("failed to purge dead-lettered jobs: %w", err)
	}

	fields := []zap.Field{
		zap.Int("purged", purged),
		zap.Duration("retention", gc.retention),
		zap.Duration("elapsed", time.Since(start)),
	}
	if purged > 0 {
		gc.logger.Info("dlq_gc_purged", fields...)
	} else {
		gc.logger.Debug("dlq_gc_nothing_to_purge", fields...)
	}
	return purged, nil
}
