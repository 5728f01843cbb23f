package consumer

import (
	"context"
	"fmt"
	"time"

	rediscommon "wisefido-discharge-board/internal/common/redis"
	"wisefido-discharge-board/internal/events"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Rebuilder rebuilds the board after a change
type Rebuilder interface {
	Rebuild(ctx context.Context, reason string) error
}

// EventConsumer 事件消费者
type EventConsumer struct {
	redisClient  *redis.Client
	rebuilder    Rebuilder
	logger       *zap.Logger
	stream       string
	groupName    string
	consumerName string
	batchSize    int64
	block        time.Duration
	// recoverPending 先重读本消费者未确认的消息 (set at startup and after a failed batch)
	recoverPending bool
}

// NewEventConsumer 创建事件消费者
func NewEventConsumer(
	redisClient *redis.Client,
	rebuilder Rebuilder,
	logger *zap.Logger,
	stream string,
	groupName string,
	consumerName string,
	batchSize int64,
) *EventConsumer {
	return &EventConsumer{
		redisClient:    redisClient,
		rebuilder:      rebuilder,
		logger:         logger,
		stream:         stream,
		groupName:      groupName,
		consumerName:   consumerName,
		batchSize:      batchSize,
		block:          2 * time.Second,
		recoverPending: true,
	}
}

// Start 启动事件消费者; returns when ctx is cancelled.
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.stream, c.groupName); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Event consumer started",
		zap.String("stream", c.stream),
		zap.String("consumer_group", c.groupName),
		zap.String("consumer_name", c.consumerName),
	)

	// 指数退避
	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.consumeEvents(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume events",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

// consumeEvents reads one batch. Board-affecting events in the batch trigger a single rebuild and
// are acked only when it succeeds; unknown or malformed events are logged and acked.
// Messages left unacked by a failed batch (or a previous process) are redelivered before new ones.
func (c *EventConsumer) consumeEvents(ctx context.Context) error {
	messages, err := c.readBatch(ctx)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	var relevant, ignored []string
	var reasons []string
	for _, msg := range messages {
		event, err := events.Parse(msg)
		if err != nil {
			c.logger.Warn("Dropping malformed event",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			ignored = append(ignored, msg.ID)
			continue
		}
		if !events.AffectsBoard(event.EventType) {
			c.logger.Warn("Unknown event type",
				zap.String("message_id", msg.ID),
				zap.String("event_type", event.EventType),
			)
			ignored = append(ignored, msg.ID)
			continue
		}

		c.logger.Info("Processing discharge event",
			zap.String("event_type", event.EventType),
			zap.String("request_id", event.RequestID),
			zap.String("bed_id", event.BedID),
		)
		relevant = append(relevant, msg.ID)
		reasons = append(reasons, event.EventType)
	}

	c.ack(ctx, ignored)

	if len(relevant) == 0 {
		return nil
	}
	if err := c.rebuilder.Rebuild(ctx, reasons[len(reasons)-1]); err != nil {
		c.recoverPending = true
		return fmt.Errorf("failed to rebuild board for %d events: %w", len(relevant), err)
	}
	c.ack(ctx, relevant)
	return nil
}

func (c *EventConsumer) readBatch(ctx context.Context) ([]rediscommon.StreamMessage, error) {
	if c.recoverPending {
		messages, err := rediscommon.ReadPendingFromStream(
			ctx,
			c.redisClient,
			c.stream,
			c.groupName,
			c.consumerName,
			c.batchSize,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to read pending messages: %w", err)
		}
		if len(messages) > 0 {
			c.logger.Info("Redelivering pending events",
				zap.Int("count", len(messages)),
				zap.String("first_id", messages[0].ID),
			)
			return messages, nil
		}
		c.recoverPending = false
	}

	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.stream,
		c.groupName,
		c.consumerName,
		c.batchSize,
		c.block,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}
	return messages, nil
}

func (c *EventConsumer) ack(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := rediscommon.Ack(ctx, c.redisClient, c.stream, c.groupName, ids...); err != nil {
		c.recoverPending = true
		c.logger.Warn("Failed to ack messages",
			zap.Strings("message_ids", ids),
			zap.Error(err),
		)
	}
}
