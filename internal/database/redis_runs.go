package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"breakout-optimizer/internal/optimizer"
)

const (
	// runKeyPrefix is the key prefix for the latest run summary per symbol.
	// Format: optimizer:run:{symbol}
	runKeyPrefix = "optimizer:run"

	// runSummaryTTL keeps cached summaries around long enough for the
	// reporting collaborators between runs.
	runSummaryTTL = 24 * time.Hour
)

// RunCache stores the latest run summary per symbol in Redis so readers
// can fetch it without touching Postgres. Postgres stays authoritative;
// the cache is best-effort.
type RunCache struct {
	client *redis.Client
}

// NewRunCache connects to Redis and verifies the connection.
func NewRunCache(ctx context.Context, addr, password string, db int) (*RunCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RunCache{client: client}, nil
}

// StoreLatest caches the summary under its symbol's key.
func (c *RunCache) StoreLatest(ctx context.Context, summary *optimizer.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	key := fmt.Sprintf("%s:%s", runKeyPrefix, summary.Symbol)
	if err := c.client.Set(ctx, key, payload, runSummaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache run summary: %w", err)
	}
	return nil
}

// GetLatest returns the cached summary for a symbol, or nil on a miss.
func (c *RunCache) GetLatest(ctx context.Context, symbol string) (*optimizer.RunSummary, error) {
	key := fmt.Sprintf("%s:%s", runKeyPrefix, symbol)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached run summary: %w", err)
	}
	var summary optimizer.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached run summary: %w", err)
	}
	return &summary, nil
}

// Close releases the Redis connection.
func (c *RunCache) Close() error {
	return c.client.Close()
}
