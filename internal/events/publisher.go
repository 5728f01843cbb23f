package events

import (
	"context"
	"fmt"

	rediscommon "wisefido-discharge-board/internal/common/redis"

	"github.com/go-redis/redis/v8"
)

// Publisher emits change events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// StreamPublisher publishes to a Redis stream as {"data": <json>, "timestamp": <unix>}
type StreamPublisher struct {
	client *redis.Client
	stream string
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, event Event) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventType, err)
	}
	return nil
}
