package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/saareats/storefront/core"
)

// RedisSource subscribes to the backend's order-update pub/sub channel.
// go-redis reconnects the subscription internally, so the events channel
// stays open across Redis hiccups without extra logic here.
type RedisSource struct {
	client  *redis.Client
	channel string
	logger  core.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// RedisSourceOptions configures a RedisSource.
type RedisSourceOptions struct {
	RedisURL string // Required
	Channel  string // Defaults to "saareats:orders:update"
	Logger   core.Logger
}

// NewRedisSource creates a Redis pub/sub push-channel source and verifies
// connectivity.
func NewRedisSource(opts RedisSourceOptions) (*RedisSource, error) {
	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", core.ErrInvalidConfiguration)
	}
	if opts.Channel == "" {
		opts.Channel = "saareats:orders:update"
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", core.ErrInvalidConfiguration)
	}
	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", core.ErrConnectionFailed)
	}

	return &RedisSource{
		client:  client,
		channel: opts.Channel,
		logger:  opts.Logger,
	}, nil
}

// Subscribe starts consuming the pub/sub channel.
func (s *RedisSource) Subscribe(ctx context.Context) (<-chan OrderUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, core.ErrClosed
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	pubsub := s.client.Subscribe(runCtx, s.channel)
	events := make(chan OrderUpdate, 16)

	go func() {
		defer close(events)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var update OrderUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil || update.OrderID == "" {
					s.logger.Warn("Dropping malformed order update", map[string]interface{}{
						"payload": msg.Payload,
					})
					continue
				}
				select {
				case events <- update:
				case <-runCtx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// Close tears the subscription down and releases the Redis connection.
func (s *RedisSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return s.client.Close()
}
