package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// ErrQueueTransition is returned when a requested queue status change is not
// allowed from the current status.
var ErrQueueTransition = errors.New("invalid queue status transition")

// BillingQueueRepositoryImpl implements the BillingQueueRepository interface
type BillingQueueRepositoryImpl struct {
	*BaseRepository[models.BillingQueue, models.BillingQueueFilter]
}

// NewBillingQueueRepository creates a new billing queue repository
func NewBillingQueueRepository(db *gorm.DB) BillingQueueRepository {
	return &BillingQueueRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BillingQueue, models.BillingQueueFilter](db),
	}
}

// ByUUID retrieves a billing queue by UUID
func (r *BillingQueueRepositoryImpl) ByUUID(ctx context.Context, rawUUID string) (*models.BillingQueue, error) {
	parsedUUID, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	filter := models.BillingQueueFilter{UUID: &parsedUUID}
	queues, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find billing queue by UUID: %w", err)
	}

	if len(queues) == 0 {
		return nil, nil
	}

	return queues[0], nil
}

// ByBillingCampaignID retrieves the queue attached to a billing campaign
func (r *BillingQueueRepositoryImpl) ByBillingCampaignID(ctx context.Context, billingCampaignID uint) (*models.BillingQueue, error) {
	db := r.getDB(ctx)

	var queue models.BillingQueue
	err := db.Where("billing_campaign_id = ?", billingCampaignID).Last(&queue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find queue for billing campaign %d: %w", billingCampaignID, err)
	}

	return &queue, nil
}

// AcquireForProcessing attempts to take ownership of a pending queue. The
// conditional update only succeeds when the queue is still pending and no
// other worker holds it, so concurrent workers cannot both win.
func (r *BillingQueueRepositoryImpl) AcquireForProcessing(ctx context.Context, queueID uint, workerID string) (bool, error) {
	db := r.getDB(ctx)

	now := utils.UTCNow()
	result := db.Model(&models.BillingQueue{}).
		Where("id = ? AND status = ? AND (processing_by IS NULL OR processing_by = ?)",
			queueID, models.QueueStatusPending, workerID).
		Updates(map[string]any{
			"status":         models.QueueStatusRunning,
			"processing_by":  workerID,
			"last_heartbeat": now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to acquire queue %d: %w", queueID, result.Error)
	}

	return result.RowsAffected == 1, nil
}

// ReleaseProcessing gives up ownership of a queue and moves it to the given
// status. Ownership is only released by the worker that holds it.
func (r *BillingQueueRepositoryImpl) ReleaseProcessing(ctx context.Context, queueID uint, workerID string, status models.QueueStatus) error {
	db := r.getDB(ctx)

	now := utils.UTCNow()
	updates := map[string]any{
		"status":        status,
		"processing_by": nil,
		"updated_at":    now,
	}
	if status == models.QueueStatusCompleted {
		updates["completed_at"] = now
	}

	result := db.Model(&models.BillingQueue{}).
		Where("id = ? AND processing_by = ?", queueID, workerID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to release queue %d: %w", queueID, result.Error)
	}

	return nil
}

// Heartbeat refreshes the liveness timestamp of a held queue
func (r *BillingQueueRepositoryImpl) Heartbeat(ctx context.Context, queueID uint, workerID string) error {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingQueue{}).
		Where("id = ? AND processing_by = ?", queueID, workerID).
		Update("last_heartbeat", utils.UTCNow())
	if result.Error != nil {
		return fmt.Errorf("failed to heartbeat queue %d: %w", queueID, result.Error)
	}

	return nil
}

// UpdateCounters atomically adjusts queue progress counters
func (r *BillingQueueRepositoryImpl) UpdateCounters(ctx context.Context, queueID uint, processedDelta, sentDelta, failedDelta int) error {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingQueue{}).
		Where("id = ?", queueID).
		Updates(map[string]any{
			"processed_contacts": gorm.Expr("processed_contacts + ?", processedDelta),
			"sent_count":         gorm.Expr("sent_count + ?", sentDelta),
			"failed_count":       gorm.Expr("failed_count + ?", failedDelta),
			"updated_at":         utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update counters for queue %d: %w", queueID, result.Error)
	}

	return nil
}

// SetStatus transitions a queue to a new status, enforcing the status machine
func (r *BillingQueueRepositoryImpl) SetStatus(ctx context.Context, queueID uint, status models.QueueStatus) error {
	db := r.getDB(ctx)

	queue, err := r.ByID(ctx, queueID)
	if err != nil {
		return err
	}
	if queue == nil {
		return fmt.Errorf("queue %d not found", queueID)
	}
	if queue.Status == status {
		return nil
	}
	if !queue.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrQueueTransition, queue.Status, status)
	}

	now := utils.UTCNow()
	updates := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	if status == models.QueueStatusCompleted {
		updates["completed_at"] = now
	}
	if status.IsTerminal() {
		updates["processing_by"] = nil
	}

	result := db.Model(&models.BillingQueue{}).
		Where("id = ? AND status = ?", queueID, queue.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to set status for queue %d: %w", queueID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: queue %d changed concurrently", ErrQueueTransition, queueID)
	}

	return nil
}

// ListPending retrieves unowned pending queues, oldest first
func (r *BillingQueueRepositoryImpl) ListPending(ctx context.Context, limit int) ([]*models.BillingQueue, error) {
	db := r.getDB(ctx)

	var queues []*models.BillingQueue
	query := db.Where("status = ? AND processing_by IS NULL", models.QueueStatusPending).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&queues).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending queues: %w", err)
	}

	return queues, nil
}

// ListStale retrieves running queues whose worker stopped heartbeating
func (r *BillingQueueRepositoryImpl) ListStale(ctx context.Context, heartbeatBefore time.Time, limit int) ([]*models.BillingQueue, error) {
	db := r.getDB(ctx)

	var queues []*models.BillingQueue
	query := db.Where("status = ? AND processing_by IS NOT NULL AND (last_heartbeat IS NULL OR last_heartbeat < ?)",
		models.QueueStatusRunning, heartbeatBefore).
		Order("last_heartbeat ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&queues).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale queues: %w", err)
	}

	return queues, nil
}

// RequeueStale returns an abandoned running queue to the pending pool. The
// conditional update only succeeds while the heartbeat is still stale, so a
// worker that resumed in the meantime keeps its ownership.
func (r *BillingQueueRepositoryImpl) RequeueStale(ctx context.Context, queueID uint, heartbeatBefore time.Time) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingQueue{}).
		Where("id = ? AND status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)",
			queueID, models.QueueStatusRunning, heartbeatBefore).
		Updates(map[string]any{
			"status":        models.QueueStatusPending,
			"processing_by": nil,
			"updated_at":    utils.UTCNow(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to requeue stale queue %d: %w", queueID, result.Error)
	}

	return result.RowsAffected == 1, nil
}

// ByFilter retrieves billing queues based on filter criteria
func (r *BillingQueueRepositoryImpl) ByFilter(ctx context.Context, filter models.BillingQueueFilter, orderBy string, limit, offset int) ([]*models.BillingQueue, error) {
	db := r.getDB(ctx)

	var queues []*models.BillingQueue
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&queues).Error
	if err != nil {
		return nil, err
	}

	return queues, nil
}

// Count returns the number of billing queues matching the filter
func (r *BillingQueueRepositoryImpl) Count(ctx context.Context, filter models.BillingQueueFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var queue models.BillingQueue
	query := r.applyFilter(db.Model(&queue), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any billing queue matching the filter exists
func (r *BillingQueueRepositoryImpl) Exists(ctx context.Context, filter models.BillingQueueFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *BillingQueueRepositoryImpl) applyFilter(db *gorm.DB, filter models.BillingQueueFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.BillingCampaignID != nil {
		db = db.Where("billing_campaign_id = ?", *filter.BillingCampaignID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	return db
}
