package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/utils"
)

const sweepBatchSize = 100

// runReclaimer periodically re-takes deliveries whose consumer died mid-queue.
// Deliveries that keep failing are moved to the dead letter stream.
func (c *Consumer) runReclaimer(ctx context.Context) {
	interval := c.cfg.ReclaimInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stream := range WorkStreams {
				c.reclaimStream(ctx, stream)
			}
		}
	}
}

func (c *Consumer) reclaimStream(ctx context.Context, stream string) {
	entries, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.group(),
		Idle:   c.cfg.ReclaimIdle,
		Start:  "-",
		End:    "+",
		Count:  sweepBatchSize,
	}).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("queue: pending scan on %s failed: %v", stream, err)
		}
		return
	}

	reclaimer := c.hostID + "-reclaim"
	for _, entry := range entries {
		if c.cfg.MaxDeliveries > 0 && entry.RetryCount >= int64(c.cfg.MaxDeliveries) {
			c.deadLetter(ctx, stream, entry.ID, entry.RetryCount)
			continue
		}

		msgs, cErr := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   stream,
			Group:    c.group(),
			Consumer: reclaimer,
			MinIdle:  c.cfg.ReclaimIdle,
			Messages: []string{entry.ID},
		}).Result()
		if cErr != nil {
			if cErr != redis.Nil {
				c.logger.Printf("queue: claim of %s on %s failed: %v", entry.ID, stream, cErr)
			}
			continue
		}
		for _, msg := range msgs {
			c.logger.Printf("queue: reclaimed delivery %s on %s (deliveries=%d)", msg.ID, stream, entry.RetryCount)
			c.handleDelivery(ctx, stream, reclaimer, msg)
		}
	}
}

// deadLetter copies an exhausted delivery to the DLQ stream and acknowledges
// the original.
func (c *Consumer) deadLetter(ctx context.Context, stream, msgID string, deliveries int64) {
	var queueID string
	msgs, err := c.client.XRange(ctx, stream, msgID, msgID).Result()
	if err == nil && len(msgs) == 1 {
		queueID, _ = msgs[0].Values["queue_id"].(string)
	}

	err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamDLQ,
		Values: map[string]any{
			"original_stream": stream,
			"original_id":     msgID,
			"queue_id":        queueID,
			"error":           "delivery budget exhausted",
			"deliveries":      deliveries,
			"failed_at":       time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		c.logger.Printf("queue: failed to dead-letter %s from %s: %v", msgID, stream, err)
		return
	}

	if err := c.client.XAck(ctx, stream, c.group(), msgID).Err(); err != nil {
		c.logger.Printf("queue: failed to ack dead-lettered %s on %s: %v", msgID, stream, err)
	}
	dlqMessages.WithLabelValues(stream).Inc()
	c.logger.Printf("queue: dead-lettered delivery %s from %s (queue=%s)", msgID, stream, queueID)
}

// runSweeper periodically republishes pending queues whose broker message got
// lost, requeues abandoned running queues, and resumes paused queues whose
// pause condition cleared.
func (c *Consumer) runSweeper(ctx context.Context) {
	interval := c.cfg.SweepInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce(ctx)
		}
	}
}

func (c *Consumer) sweepOnce(ctx context.Context) {
	c.sweepPending(ctx)
	c.sweepStale(ctx)
	for _, status := range []models.QueueStatus{
		models.QueueStatusPaused,
		models.QueueStatusPausedBusinessHours,
		models.QueueStatusPausedInstanceDown,
	} {
		c.sweepPaused(ctx, status)
	}
}

// sweepPending republishes unowned pending queues. Publishing is idempotent
// for workers because ownership is decided by the database, not the stream.
func (c *Consumer) sweepPending(ctx context.Context) {
	queues, err := c.queueRepo.ListPending(ctx, sweepBatchSize)
	if err != nil {
		c.logger.Printf("queue: sweep of pending queues failed: %v", err)
		return
	}
	for _, q := range queues {
		if err := c.publisher.PublishQueue(ctx, c.templateTypeOf(ctx, q), q.UUID.String()); err != nil {
			c.logger.Printf("queue: sweep republish of queue %s failed: %v", q.UUID, err)
			continue
		}
		queuesSwept.WithLabelValues("pending").Inc()
	}
}

// sweepStale requeues running queues whose worker stopped heartbeating.
func (c *Consumer) sweepStale(ctx context.Context) {
	idle := c.cfg.ReclaimIdle
	if idle <= 0 {
		idle = time.Minute
	}
	cutoff := utils.UTCNow().Add(-idle)

	queues, err := c.queueRepo.ListStale(ctx, cutoff, sweepBatchSize)
	if err != nil {
		c.logger.Printf("queue: sweep of stale queues failed: %v", err)
		return
	}
	for _, q := range queues {
		requeued, rErr := c.queueRepo.RequeueStale(ctx, q.ID, cutoff)
		if rErr != nil {
			c.logger.Printf("queue: requeue of stale queue %s failed: %v", q.UUID, rErr)
			continue
		}
		if !requeued {
			continue
		}
		c.logger.Printf("queue: requeued stale queue %s (was held by %v)", q.UUID, q.ProcessingBy)
		if err := c.publisher.PublishQueue(ctx, c.templateTypeOf(ctx, q), q.UUID.String()); err != nil {
			c.logger.Printf("queue: sweep republish of queue %s failed: %v", q.UUID, err)
			continue
		}
		queuesSwept.WithLabelValues("stale").Inc()
	}
}

// sweepPaused resumes paused queues whose pause condition no longer holds.
func (c *Consumer) sweepPaused(ctx context.Context, status models.QueueStatus) {
	queues, err := c.queueRepo.ByFilter(ctx, models.BillingQueueFilter{Status: &status}, "created_at ASC", sweepBatchSize, 0)
	if err != nil {
		c.logger.Printf("queue: sweep of %s queues failed: %v", status, err)
		return
	}

	for _, q := range queues {
		resumable, rErr := c.canResume(ctx, q, status)
		if rErr != nil {
			c.logger.Printf("queue: resume check for queue %s failed: %v", q.UUID, rErr)
			continue
		}
		if !resumable {
			continue
		}

		if err := c.queueRepo.SetStatus(ctx, q.ID, models.QueueStatusPending); err != nil {
			c.logger.Printf("queue: failed to resume queue %s: %v", q.UUID, err)
			continue
		}
		c.logger.Printf("queue: resumed queue %s from %s", q.UUID, status)
		if err := c.publisher.PublishQueue(ctx, c.templateTypeOf(ctx, q), q.UUID.String()); err != nil {
			c.logger.Printf("queue: sweep republish of queue %s failed: %v", q.UUID, err)
			continue
		}
		queuesSwept.WithLabelValues("resumed").Inc()
	}
}

func (c *Consumer) canResume(ctx context.Context, q *models.BillingQueue, status models.QueueStatus) (bool, error) {
	tenant, err := c.tenantRepo.ByID(ctx, q.TenantID)
	if err != nil {
		return false, err
	}
	if tenant == nil || !utils.IsTrue(tenant.IsActive) {
		return false, nil
	}

	switch status {
	case models.QueueStatusPausedBusinessHours:
		open, hErr := c.hours.IsOpen(ctx, q.TenantID, nil, time.Now())
		if hErr != nil {
			return false, hErr
		}
		return open, nil
	case models.QueueStatusPausedInstanceDown:
		instance, iErr := c.instanceRepo.ActiveForTenant(ctx, q.TenantID)
		if iErr != nil {
			return false, iErr
		}
		if instance == nil {
			return false, nil
		}
		healthy, _ := c.gateway.CheckHealth(ctx, instance)
		return healthy, nil
	default:
		instance, iErr := c.instanceRepo.ActiveForTenant(ctx, q.TenantID)
		if iErr != nil {
			return false, iErr
		}
		return instance != nil, nil
	}
}
