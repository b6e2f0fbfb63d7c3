package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOptions parses url for the idempotency and rate limit cache. Cache
// calls sit on the request path, so reads and writes are kept short.
func redisOptions(url, appName string) (*redis.Options, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis: %w", errMissingURL)
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = appName
	}
	opt.DialTimeout = connectTimeout
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 500 * time.Millisecond
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = 500 * time.Millisecond
	}
	return opt, nil
}

// NewRedisClient connects the cache and verifies it answers.
func NewRedisClient(ctx context.Context, url, appName string) (*redis.Client, error) {
	opt, err := redisOptions(url, appName)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}

	return client, nil
}
