// Package core provides the shared abstractions of the storefront client:
// the Logger/Telemetry/Storage interfaces, configuration layering, sentinel
// errors, and the storage backends.
//
// This file implements the Redis-backed Storage. It is used when the
// storefront runs as a kiosk fleet or server-mediated client and carts must
// survive individual device restarts.
//
// Namespacing:
// All keys are automatically prefixed with the configured namespace,
// "saareats:storefront" by default, so slot keys like "saareats_cart_v1"
// cannot collide with other tenants of the same Redis.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStorage is a Storage implementation backed by Redis.
type RedisStorage struct {
	client    *redis.Client
	namespace string
	logger    Logger
}

// RedisStorageOptions configures the Redis storage backend.
type RedisStorageOptions struct {
	RedisURL  string
	Namespace string // Key namespace; defaults to "saareats:storefront"
	Logger    Logger // Optional logger
}

// NewRedisStorage creates a Redis-backed Storage and verifies connectivity.
func NewRedisStorage(opts RedisStorageOptions) (*RedisStorage, error) {
	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", ErrInvalidConfiguration)
	}
	if opts.Namespace == "" {
		opts.Namespace = "saareats:storefront"
	}
	if opts.Logger == nil {
		opts.Logger = &NoOpLogger{}
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		opts.Logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"error":     err,
			"redis_url": opts.RedisURL,
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}

	client := redis.NewClient(redisOpt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		opts.Logger.Error("Failed to connect to Redis", map[string]interface{}{
			"error":     err,
			"namespace": opts.Namespace,
		})
		return nil, fmt.Errorf("failed to connect to Redis: %w", ErrConnectionFailed)
	}

	opts.Logger.Info("Redis storage connected", map[string]interface{}{
		"namespace": opts.Namespace,
	})

	return &RedisStorage{
		client:    client,
		namespace: opts.Namespace,
		logger:    opts.Logger,
	}, nil
}

// Close closes the Redis connection.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func (r *RedisStorage) formatKey(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.formatKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value string) error {
	if err := r.client.Set(ctx, r.formatKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.formatKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.formatKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}
