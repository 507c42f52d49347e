// Package queue implements the Redis Streams broker layer: campaign queue
// publication, throttled consumption, stale-delivery reclaim, and the sweeper
// that re-promotes paused or abandoned queues.
package queue

import (
	"time"

	"github.com/zapflow/billing-engine/models"
)

// Stream names. Each template type has its own stream so overdue, upcoming
// and notification traffic can be consumed independently.
const (
	StreamOverdue      = "billing.overdue"
	StreamUpcoming     = "billing.upcoming"
	StreamNotification = "billing.notification"
	StreamDLQ          = "billing.dlq"
)

// DefaultConsumerGroup is used when no group is configured.
const DefaultConsumerGroup = "billing-workers"

// WorkStreams lists the streams consumed by workers, excluding the DLQ.
var WorkStreams = []string{StreamOverdue, StreamUpcoming, StreamNotification}

// StreamForType maps a template type to its stream.
func StreamForType(t models.TemplateType) string {
	switch t {
	case models.TemplateTypeOverdue:
		return StreamOverdue
	case models.TemplateTypeUpcoming:
		return StreamUpcoming
	default:
		return StreamNotification
	}
}

// QueueMessage is the payload published per billing queue. The queue row in
// the database is the source of truth; the message only names which queue to
// process.
type QueueMessage struct {
	QueueID      string    `json:"queue_id"`
	TemplateType string    `json:"template_type"`
	Timestamp    time.Time `json:"timestamp"`
}

// DLQMessage wraps a delivery that exhausted its redelivery budget.
type DLQMessage struct {
	OriginalStream string    `json:"original_stream"`
	OriginalID     string    `json:"original_id"`
	QueueID        string    `json:"queue_id"`
	Error          string    `json:"error"`
	Deliveries     int64     `json:"deliveries"`
	FailedAt       time.Time `json:"failed_at"`
}
