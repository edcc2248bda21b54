package middleware

import (
	"fmt"
	"net/http"

	logpkg "github.com/benvon/wordtag/internal/logger"
	"github.com/benvon/wordtag/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	// DefaultRate is used when no rate is configured
	DefaultRate = "20-S"

	rateLimitKeyPrefix = "wordtag:ratelimit"
)

// RateLimit returns per-client-IP rate limiting middleware. Counters live in
// Redis so every server instance shares them; with a nil client they are kept
// in process memory.
func RateLimit(redisClient *redis.Client, formatted string, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if formatted == "" {
		formatted = DefaultRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", formatted, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: rateLimitKeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitKeyPrefix})
	}

	instance := limiter.New(store, rate)
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("rate_limit_exceeded",
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Int64("limit", rate.Limit),
			)
			respondErrorJSON(w, r, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded, try again later", logger)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("rate_limit_store_error",
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
				zap.String("error", logpkg.SanitizeError(err)),
			)
			if fw, ok := w.(*failOpenWriter); ok {
				fw.storeFailed = true
			}
		}),
	)
	return failOpen(mw), nil
}

// failOpen serves the request when the limiter store is unreachable instead of
// rejecting it. The stdlib middleware stops after its error handler, so the
// handler only flags the failure and the request is forwarded here.
func failOpen(mw *stdlibmw.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := mw.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fw := &failOpenWriter{ResponseWriter: w}
			limited.ServeHTTP(fw, r)
			if fw.storeFailed {
				next.ServeHTTP(w, r)
			}
		})
	}
}

type failOpenWriter struct {
	http.ResponseWriter
	storeFailed bool
}

func (f *failOpenWriter) Unwrap() http.ResponseWriter {
	return f.ResponseWriter
}
