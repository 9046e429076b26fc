// Package realtime fans lifecycle events out to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/models"
)

// Channel is a publish/subscribe transport for events.
type Channel interface {
	Publish(ctx context.Context, event models.Event) error
	// Subscribe delivers events until ctx is done or the returned cancel func is called.
	Subscribe(ctx context.Context) (<-chan models.Event, func(), error)
}

// RedisChannel publishes JSON events on a Redis pub/sub channel so every API instance sees them.
type RedisChannel struct {
	client *redis.Client
	name   string
	logger *zap.Logger
}

// NewRedisChannel builds a Redis-backed channel.
func NewRedisChannel(client *redis.Client, name string, logger *zap.Logger) *RedisChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisChannel{client: client, name: name, logger: logger}
}

// Publish encodes and sends the event.
func (c *RedisChannel) Publish(ctx context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := c.client.Publish(ctx, c.name, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe listens on the Redis channel and decodes each message. Malformed payloads are skipped.
func (c *RedisChannel) Subscribe(ctx context.Context) (<-chan models.Event, func(), error) {
	sub := c.client.Subscribe(ctx, c.name)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", c.name, err)
	}

	out := make(chan models.Event, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			event, err := decodeEvent(msg.Payload)
			if err != nil {
				c.logger.Warn("dropping malformed realtime event", zap.Error(err))
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}

func decodeEvent(payload string) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return models.Event{}, err
	}
	if event.Type == "" {
		return models.Event{}, fmt.Errorf("event without type")
	}
	return event, nil
}

// LocalChannel delivers events in-process. Used when Redis is disabled and in tests.
type LocalChannel struct {
	mu   sync.RWMutex
	subs map[chan models.Event]struct{}
}

// NewLocalChannel builds an in-process channel.
func NewLocalChannel() *LocalChannel {
	return &LocalChannel{subs: make(map[chan models.Event]struct{})}
}

// Publish hands the event to every subscriber. Slow subscribers miss events rather than block.
func (c *LocalChannel) Publish(_ context.Context, event models.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for sub := range c.subs {
		select {
		case sub <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a buffered subscriber.
func (c *LocalChannel) Subscribe(ctx context.Context) (<-chan models.Event, func(), error) {
	sub := make(chan models.Event, 16)
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, sub)
			close(sub)
			c.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return sub, cancel, nil
}
