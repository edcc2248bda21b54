package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/wordtag/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "wordtag:analysis:v1:"

// Entry is the cached outcome of aggregating one text
type Entry struct {
	Rendered   string           `json:"rendered"`
	Counts     models.TagCounts `json:"counts"`
	TokenCount int              `json:"token_count"`
}

// ResultCache stores aggregation results in Redis keyed by a hash of the text.
// Failures are logged and reported as misses.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache wraps an existing client
func NewResultCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{client: client, ttl: ttl, logger: logger}
}

// Connect parses a redis:// URL and verifies the server is reachable
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Key returns the cache key for text with or without averaging
func Key(text string, useAverages bool) string {
	sum := sha256.Sum256([]byte(text))
	mode := "raw"
	if useAverages {
		mode = "avg"
	}
	return keyPrefix + hex.EncodeToString(sum[:]) + ":" + mode
}

// Get returns the cached entry, if any
func (c *ResultCache) Get(ctx context.Context, text string, useAverages bool) (*Entry, bool) {
	key := Key(text, useAverages)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache_get_failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("cache_entry_corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if entry.Counts == nil {
		entry.Counts = make(models.TagCounts)
	}
	return &entry, true
}

// Set stores entry under the key for text
func (c *ResultCache) Set(ctx context.Context, text string, useAverages bool, entry *Entry) {
	key := Key(text, useAverages)
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("cache_encode_failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache_set_failed", zap.String("key", key), zap.Error(err))
	}
}

// Ping checks if Redis is reachable
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
