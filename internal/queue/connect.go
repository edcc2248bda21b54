package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how often connecting to the broker is attempted.
// RabbitMQ often starts after the services that depend on it.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy tries 10 times with exponential backoff capped at 30 seconds
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:  10,
	InitialDelay: 2 * time.Second,
	MaxDelay:     30 * time.Second,
}

// Delay returns the wait after the given zero-based failed attempt
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ConnectRabbitMQ dials RabbitMQ until it succeeds, the policy is exhausted or ctx is done
func ConnectRabbitMQ(ctx context.Context, amqpURL string, policy RetryPolicy, logger *zap.Logger) (*RabbitMQQueue, error) {
	return connectWithRetry(ctx, policy, logger, func() (*RabbitMQQueue, error) {
		return NewRabbitMQQueue(amqpURL, logger)
	})
}

func connectWithRetry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, dial func() (T, error)) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		conn, err := dial()
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return conn, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		delay := policy.Delay(attempt)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}
