package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher appends events to a Redis stream for downstream consumers
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

var _ Publisher = (*StreamPublisher)(nil)

// NewStreamPublisher creates a publisher writing to stream. maxLen caps the stream
// length approximately; 0 leaves it unbounded.
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient creates a Redis client
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"type":      event.Type,
			"data":      string(data),
			"timestamp": strconv.FormatInt(event.Timestamp, 10),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event to stream %s: %w", event.Type, p.stream, err)
	}
	return nil
}
