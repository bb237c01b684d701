package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement-engine/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel refresh events travel on.
const DefaultChannel = "settlement:session-events"

// RedisRelay fans refresh events out to every worker instance: Publish
// sends to Redis and Run forwards what arrives into the local Bus.
type RedisRelay struct {
	client  *redis.Client
	channel string
	bus     *Bus
	logger  logger.Logger
}

func NewRedisRelay(client *redis.Client, channel string, bus *Bus, log logger.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		bus:     bus,
		logger:  log.WithFields(map[string]interface{}{"component": "event-relay", "channel": channel}),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and blocks until ctx is done. ready, if
// non-nil, is closed once the subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("dropping malformed event", map[string]interface{}{"error": err.Error()})
				continue
			}
			_ = r.bus.Publish(ctx, ev)
		}
	}
}
