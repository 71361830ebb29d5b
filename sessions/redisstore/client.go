package redisstore

import (
	"context"
	"fmt"

	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient builds the process wide pooled client and waits for the server
// to answer a PING under the retry policy. REDIS_URL wins over host/port.
func NewClient(ctx context.Context, cfg config.StoreConfig, policy RetryPolicy) (*redis.Client, error) {
	var opts *redis.Options
	if url := cfg.GetRedisURL(); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("[redisstore NewClient] parse redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		}
	}
	if size := cfg.GetRedisPoolSize(); size > 0 {
		opts.PoolSize = size
	}

	client := redis.NewClient(opts)
	err := withRetry(ctx, policy, "ping", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[redisstore NewClient] %w", err)
	}
	return client, nil
}
