package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue work items pushed to the broker, partitioned by stream
	queuesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_queues_published_total",
			Help: "Total queue work items published to the broker",
		},
		[]string{"stream"},
	)

	// Messages dispatched to the gateway, partitioned by stream and result
	messagesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_messages_dispatched_total",
			Help: "Total messages dispatched to the gateway by result",
		},
		[]string{"stream", "result"},
	)

	// Queue pauses, partitioned by reason
	queuePauses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_queue_pauses_total",
			Help: "Total queue pauses by reason",
		},
		[]string{"reason"},
	)

	// Queues drained to completion
	queuesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_queues_completed_total",
			Help: "Total queues drained to completion",
		},
	)

	// Deliveries moved to the dead letter stream
	dlqMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_dlq_messages_total",
			Help: "Total deliveries moved to the dead letter stream",
		},
		[]string{"stream"},
	)

	// Queues re-promoted by the sweeper, partitioned by cause
	queuesSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_queues_swept_total",
			Help: "Total queues re-promoted to pending by the sweeper",
		},
		[]string{"cause"},
	)
)
