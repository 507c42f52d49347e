package queue

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zapflow/billing-engine/app/services"
	"github.com/zapflow/billing-engine/config"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/repository"
	"github.com/zapflow/billing-engine/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

// initQueueLogger writes to stdout and to a rotating file under a data
// directory. Falls back to stdout only.
func initQueueLogger() *log.Logger {
	paths := []string{
		filepath.Join("data", "queue_worker.log"),
		filepath.Join("/data", "queue_worker.log"),
	}
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}
		rotator := &lumberjack.Logger{
			Filename:   p,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		return log.New(io.MultiWriter(os.Stdout, rotator), "queue ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}
	return log.New(os.Stdout, "queue ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Consumer drains billing queues off the Redis streams. Each delivery names a
// queue; the worker re-validates the gates, takes ownership through the
// database, and sends the queue's contacts one by one at the tenant's
// throttle interval.
type Consumer struct {
	client       *redis.Client
	cfg          config.BrokerConfig
	tenantRepo   repository.TenantRepository
	instanceRepo repository.WhatsAppInstanceRepository
	campaignRepo repository.BillingCampaignRepository
	queueRepo    repository.BillingQueueRepository
	contactRepo  repository.BillingContactRepository
	hours        services.BusinessHoursOracle
	gateway      services.GatewayClient
	publisher    Publisher
	logger       *log.Logger
	hostID       string
}

// NewConsumer creates a consumer over the given broker and repositories.
func NewConsumer(
	client *redis.Client,
	cfg config.BrokerConfig,
	tenantRepo repository.TenantRepository,
	instanceRepo repository.WhatsAppInstanceRepository,
	campaignRepo repository.BillingCampaignRepository,
	queueRepo repository.BillingQueueRepository,
	contactRepo repository.BillingContactRepository,
	hours services.BusinessHoursOracle,
	gateway services.GatewayClient,
	publisher Publisher,
) *Consumer {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return &Consumer{
		client:       client,
		cfg:          cfg,
		tenantRepo:   tenantRepo,
		instanceRepo: instanceRepo,
		campaignRepo: campaignRepo,
		queueRepo:    queueRepo,
		contactRepo:  contactRepo,
		hours:        hours,
		gateway:      gateway,
		publisher:    publisher,
		logger:       initQueueLogger(),
		hostID:       fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
	}
}

func (c *Consumer) group() string {
	if c.cfg.ConsumerGroup != "" {
		return c.cfg.ConsumerGroup
	}
	return DefaultConsumerGroup
}

// Start creates the stream topology and launches the worker, reclaim and
// sweep goroutines. The returned function stops everything.
func (c *Consumer) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	if err := c.ensureTopology(ctx); err != nil {
		c.logger.Printf("queue: topology setup failed: %v", err)
	}

	workers := c.cfg.WorkersPerQueue
	if workers <= 0 {
		workers = 1
	}
	for _, stream := range WorkStreams {
		for i := 0; i < workers; i++ {
			name := fmt.Sprintf("%s-%d", c.hostID, i)
			go c.runWorker(ctx, stream, name)
		}
	}
	go c.runReclaimer(ctx)
	go c.runSweeper(ctx)

	c.logger.Printf("queue: started %d workers per stream as %s", workers, c.hostID)
	return cancel
}

// ensureTopology creates the consumer group on every work stream. Existing
// groups are fine.
func (c *Consumer) ensureTopology(ctx context.Context) error {
	for _, stream := range WorkStreams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.group(), "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create group on %s: %w", stream, err)
		}
	}
	return nil
}

func (c *Consumer) runWorker(ctx context.Context, stream, consumerName string) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group(),
			Consumer: consumerName,
			Streams:  []string{stream, ">"},
			Count:    1,
			Block:    c.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			c.logger.Printf("queue: read on %s failed: %v", stream, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, str := range res {
			for _, msg := range str.Messages {
				c.handleDelivery(ctx, stream, consumerName, msg)
			}
		}
	}
}

// handleDelivery processes one queue work item. The database row carries the
// authoritative state; a delivery whose queue moved on is acknowledged and
// dropped.
func (c *Consumer) handleDelivery(ctx context.Context, stream, consumerName string, msg redis.XMessage) {
	ack := func() {
		if err := c.client.XAck(ctx, stream, c.group(), msg.ID).Err(); err != nil {
			c.logger.Printf("queue: ack %s on %s failed: %v", msg.ID, stream, err)
		}
	}

	queueUUID, _ := msg.Values["queue_id"].(string)
	if queueUUID == "" {
		c.logger.Printf("queue: dropping malformed delivery %s on %s", msg.ID, stream)
		ack()
		return
	}

	queue, err := c.queueRepo.ByUUID(ctx, queueUUID)
	if err != nil {
		// Left unacked so the reclaimer retries it.
		c.logger.Printf("queue: failed to load queue %s: %v", queueUUID, err)
		return
	}
	if queue == nil {
		c.logger.Printf("queue: dropping delivery for unknown queue %s", queueUUID)
		ack()
		return
	}
	if queue.Status != models.QueueStatusPending {
		// Terminal, already running elsewhere, or paused awaiting the sweeper.
		ack()
		return
	}

	tenant, err := c.tenantRepo.ByID(ctx, queue.TenantID)
	if err != nil {
		c.logger.Printf("queue: failed to load tenant %d for queue %s: %v", queue.TenantID, queueUUID, err)
		return
	}
	if tenant == nil || !utils.IsTrue(tenant.IsActive) {
		c.pause(ctx, queue, models.QueueStatusPaused, "tenant_inactive")
		ack()
		return
	}

	billingCfg, err := c.tenantRepo.BillingConfig(ctx, tenant.ID)
	if err != nil {
		c.logger.Printf("queue: failed to load billing config for tenant %d: %v", tenant.ID, err)
		return
	}
	if billingCfg == nil {
		billingCfg = &models.BillingConfig{TenantID: tenant.ID}
	}

	if c.hoursEnabled(billingCfg) {
		open, hErr := c.hours.IsOpen(ctx, tenant.ID, nil, time.Now())
		if hErr != nil {
			c.logger.Printf("queue: business hours check failed for tenant %d: %v", tenant.ID, hErr)
		} else if !open {
			c.pause(ctx, queue, models.QueueStatusPausedBusinessHours, "business_hours")
			ack()
			return
		}
	}

	instance, err := c.instanceRepo.ActiveForTenant(ctx, tenant.ID)
	if err != nil {
		c.logger.Printf("queue: failed to load instance for tenant %d: %v", tenant.ID, err)
		return
	}
	if instance == nil {
		c.pause(ctx, queue, models.QueueStatusPaused, "no_instance")
		ack()
		return
	}

	if healthy, reason := c.gateway.CheckHealth(ctx, instance); !healthy {
		c.logger.Printf("queue: instance %s unhealthy for queue %s: %s", instance.InstanceName, queueUUID, reason)
		c.pause(ctx, queue, models.QueueStatusPausedInstanceDown, "instance_down")
		ack()
		return
	}

	acquired, err := c.queueRepo.AcquireForProcessing(ctx, queue.ID, consumerName)
	if err != nil {
		c.logger.Printf("queue: failed to acquire queue %s: %v", queueUUID, err)
		return
	}
	if !acquired {
		ack()
		return
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go c.heartbeatLoop(hbCtx, queue.ID, consumerName)

	release, republish := c.drainQueue(ctx, stream, queue, billingCfg, instance)
	stopHeartbeat()

	// Release may run after ctx is cancelled on shutdown.
	releaseCtx, cancelRelease := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelRelease()
	if err := c.queueRepo.ReleaseProcessing(releaseCtx, queue.ID, consumerName, release); err != nil {
		c.logger.Printf("queue: failed to release queue %s as %s: %v", queueUUID, release, err)
	}
	switch release {
	case models.QueueStatusCompleted:
		queuesCompleted.Inc()
		c.logger.Printf("queue: queue %s completed", queueUUID)
	case models.QueueStatusPausedBusinessHours:
		queuePauses.WithLabelValues("business_hours").Inc()
	case models.QueueStatusPausedInstanceDown:
		queuePauses.WithLabelValues("instance_down").Inc()
	}

	if republish && ctx.Err() == nil {
		tt := models.TemplateType(fmt.Sprint(msg.Values["template_type"]))
		if !tt.Valid() {
			tt = c.templateTypeOf(ctx, queue)
		}
		if err := c.publisher.PublishQueue(ctx, tt, queueUUID); err != nil {
			// Queue stays pending; the sweeper republishes it.
			c.logger.Printf("queue: failed to republish queue %s: %v", queueUUID, err)
		}
	}

	ack()
}

// drainQueue sends up to one batch of contacts and reports the status to
// release the queue with, plus whether the queue should be republished for
// another pass.
func (c *Consumer) drainQueue(ctx context.Context, stream string, queue *models.BillingQueue, billingCfg *models.BillingConfig, instance *models.WhatsAppInstance) (models.QueueStatus, bool) {
	batchSize := billingCfg.MaxBatchContacts
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := billingCfg.SendInterval()

	batch, err := c.contactRepo.ListPendingByCampaign(ctx, queue.BillingCampaignID, batchSize)
	if err != nil {
		c.logger.Printf("queue: failed to load contacts for queue %s: %v", queue.UUID, err)
		return models.QueueStatusPending, false
	}

	for i, contact := range batch {
		if ctx.Err() != nil {
			return models.QueueStatusPending, false
		}

		// Conditions can change mid-batch; re-check before every send.
		if c.hoursEnabled(billingCfg) {
			if open, hErr := c.hours.IsOpen(ctx, queue.TenantID, nil, time.Now()); hErr == nil && !open {
				return models.QueueStatusPausedBusinessHours, false
			}
		}
		if healthy, _ := c.gateway.CheckHealth(ctx, instance); !healthy {
			return models.QueueStatusPausedInstanceDown, false
		}

		claimed, cErr := c.contactRepo.ClaimForSending(ctx, contact.ID, contact.Version)
		if cErr != nil {
			c.logger.Printf("queue: failed to claim contact %d: %v", contact.ID, cErr)
			continue
		}
		if !claimed {
			continue
		}

		c.dispatch(ctx, stream, queue, instance, contact)

		if i < len(batch)-1 {
			select {
			case <-ctx.Done():
				return models.QueueStatusPending, false
			case <-time.After(interval):
			}
		}
	}

	remaining, err := c.contactRepo.ListPendingByCampaign(ctx, queue.BillingCampaignID, 1)
	if err != nil {
		c.logger.Printf("queue: failed to count remaining contacts for queue %s: %v", queue.UUID, err)
		return models.QueueStatusPending, true
	}
	if len(remaining) > 0 {
		return models.QueueStatusPending, true
	}
	return models.QueueStatusCompleted, false
}

// dispatch sends one claimed contact and records the outcome.
func (c *Consumer) dispatch(ctx context.Context, stream string, queue *models.BillingQueue, instance *models.WhatsAppInstance, contact *models.BillingContact) {
	resp, err := c.gateway.SendText(ctx, instance, contact.Phone, contact.RenderedMessage, nil)
	if err == nil {
		var messageID *string
		if resp.MessageID != "" {
			messageID = &resp.MessageID
		}
		if mErr := c.contactRepo.MarkSent(ctx, contact.ID, messageID, utils.UTCNow()); mErr != nil {
			c.logger.Printf("queue: failed to mark contact %d sent: %v", contact.ID, mErr)
		}
		if cErr := c.queueRepo.UpdateCounters(ctx, queue.ID, 1, 1, 0); cErr != nil {
			c.logger.Printf("queue: failed to update counters for queue %s: %v", queue.UUID, cErr)
		}
		messagesDispatched.WithLabelValues(stream, "sent").Inc()
		return
	}

	if ctx.Err() != nil {
		// Shutdown mid-send; leave the contact retryable without counting it.
		if mErr := c.contactRepo.MarkDispatchResult(ctx, contact.ID, models.ContactStatusPendingRetry, err.Error()); mErr != nil {
			c.logger.Printf("queue: failed to requeue contact %d: %v", contact.ID, mErr)
		}
		return
	}

	c.logger.Printf("queue: send to contact %d failed: %v", contact.ID, err)
	if mErr := c.contactRepo.MarkDispatchResult(ctx, contact.ID, models.ContactStatusFailed, err.Error()); mErr != nil {
		c.logger.Printf("queue: failed to mark contact %d failed: %v", contact.ID, mErr)
	}
	if cErr := c.queueRepo.UpdateCounters(ctx, queue.ID, 1, 0, 1); cErr != nil {
		c.logger.Printf("queue: failed to update counters for queue %s: %v", queue.UUID, cErr)
	}
	messagesDispatched.WithLabelValues(stream, "failed").Inc()
}

// heartbeatLoop refreshes queue ownership while a batch is in flight.
func (c *Consumer) heartbeatLoop(ctx context.Context, queueID uint, consumerName string) {
	ticker := time.NewTicker(utils.QueueHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.queueRepo.Heartbeat(ctx, queueID, consumerName); err != nil {
				c.logger.Printf("queue: heartbeat for queue %d failed: %v", queueID, err)
			}
		}
	}
}

func (c *Consumer) pause(ctx context.Context, queue *models.BillingQueue, status models.QueueStatus, reason string) {
	if err := c.queueRepo.SetStatus(ctx, queue.ID, status); err != nil {
		c.logger.Printf("queue: failed to pause queue %s (%s): %v", queue.UUID, reason, err)
		return
	}
	queuePauses.WithLabelValues(reason).Inc()
	c.logger.Printf("queue: paused queue %s (%s)", queue.UUID, reason)
}

func (c *Consumer) hoursEnabled(cfg *models.BillingConfig) bool {
	return cfg.BusinessHoursEnabled == nil || *cfg.BusinessHoursEnabled
}

// templateTypeOf resolves the stream a queue belongs on from its campaign.
func (c *Consumer) templateTypeOf(ctx context.Context, queue *models.BillingQueue) models.TemplateType {
	campaign, err := c.campaignRepo.ByID(ctx, queue.BillingCampaignID)
	if err != nil || campaign == nil {
		return models.TemplateTypeNotification
	}
	return campaign.Type
}
