// Package storage provides core.Storage implementations for the admin session slots
// (SQLite, PostgreSQL, Redis) and a Redis pub/sub core.Broadcaster for logout events.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/wispberry-tech/wispy-admin/core"
)

var (
	_ core.Storage     = (*SQLiteStorage)(nil)
	_ core.Storage     = (*PostgresStorage)(nil)
	_ core.Storage     = (*RedisStorage)(nil)
	_ core.Broadcaster = (*RedisBroadcaster)(nil)
)

// DefaultRedisPrefix namespaces the slot keys
const DefaultRedisPrefix = "wispy-admin:"

// DefaultRedisChannel is the pub/sub channel session events travel on
const DefaultRedisChannel = "wispy-admin:session-events"

// RedisStorage keeps the session slots as plain Redis strings
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects using a redis:// or rediss:// URL
func NewRedisStorage(redisURL string) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStorageFromClient(redis.NewClient(opt), DefaultRedisPrefix), nil
}

// NewRedisStorageFromClient wraps an existing client, so storage and broadcaster can share it
func NewRedisStorageFromClient(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

// Client exposes the underlying client
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get slot %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	// no TTL: expiry is decided by the session store, not by key eviction
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set slot %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// RedisBroadcaster publishes session events on a Redis channel so consoles in
// other processes can react to a logout. Redis pub/sub is fire-and-forget:
// subscribers that are not connected at publish time never receive the event.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

// NewRedisBroadcaster creates a broadcaster on the given channel
func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisBroadcaster{client: client, channel: channel}
}

// Publish sends the event to current subscribers
func (b *RedisBroadcaster) Publish(ctx context.Context, event core.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode session event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish session event: %w", err)
	}
	return nil
}

// Subscribe listens for session events until the returned cancel is called.
// Undecodable messages are skipped, and events are dropped when the buffer is full.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, buffer int) (<-chan core.SessionEvent, func() error, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	// wait for the subscription confirmation so no event published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	if buffer < 1 {
		buffer = 1
	}
	out := make(chan core.SessionEvent, buffer)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event core.SessionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Debug("Skipping undecodable session event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case out <- event:
			default:
				slog.Debug("Dropped session event for slow subscriber", "event_type", event.Type)
			}
		}
	}()

	return out, pubsub.Close, nil
}
