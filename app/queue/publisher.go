package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zapflow/billing-engine/models"
)

// Publisher pushes queue work items onto the Redis streams.
type Publisher interface {
	PublishQueue(ctx context.Context, templateType models.TemplateType, queueUUID string) error
}

// RedisPublisher implements Publisher over Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher bound to the given Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishQueue appends a work item to the stream for the given template type.
func (p *RedisPublisher) PublishQueue(ctx context.Context, templateType models.TemplateType, queueUUID string) error {
	stream := StreamForType(templateType)

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"queue_id":      queueUUID,
			"template_type": templateType.String(),
			"timestamp":     time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish queue %s to %s: %w", queueUUID, stream, err)
	}

	queuesPublished.WithLabelValues(stream).Inc()
	return nil
}
