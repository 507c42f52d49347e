package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BillingContactRepositoryImpl implements the BillingContactRepository interface
type BillingContactRepositoryImpl struct {
	*BaseRepository[models.BillingContact, models.BillingContactFilter]
}

// NewBillingContactRepository creates a new billing contact repository
func NewBillingContactRepository(db *gorm.DB) BillingContactRepository {
	return &BillingContactRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BillingContact, models.BillingContactFilter](db),
	}
}

// ByUUID retrieves a billing contact by UUID
func (r *BillingContactRepositoryImpl) ByUUID(ctx context.Context, rawUUID string) (*models.BillingContact, error) {
	parsedUUID, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	filter := models.BillingContactFilter{UUID: &parsedUUID}
	contacts, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find billing contact by UUID: %w", err)
	}

	if len(contacts) == 0 {
		return nil, nil
	}

	return contacts[0], nil
}

// ClaimForSending moves a contact from pending or pending_retry to sending,
// guarded by the version the caller read. A false return means another worker
// already claimed it or its state moved on.
func (r *BillingContactRepositoryImpl) ClaimForSending(ctx context.Context, contactID uint, version int) (bool, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingContact{}).
		Where("id = ? AND version = ? AND status IN ?",
			contactID, version, []models.ContactStatus{models.ContactStatusPending, models.ContactStatusPendingRetry}).
		Updates(map[string]any{
			"status":     models.ContactStatusSending,
			"version":    gorm.Expr("version + 1"),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim contact %d: %w", contactID, result.Error)
	}

	return result.RowsAffected == 1, nil
}

// MarkSent records a successful dispatch
func (r *BillingContactRepositoryImpl) MarkSent(ctx context.Context, contactID uint, gatewayMessageID *string, sentAt time.Time) error {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingContact{}).
		Where("id = ? AND status = ?", contactID, models.ContactStatusSending).
		Updates(map[string]any{
			"status":             models.ContactStatusSent,
			"gateway_message_id": gatewayMessageID,
			"sent_at":            sentAt,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark contact %d sent: %w", contactID, result.Error)
	}

	return nil
}

// MarkDispatchResult moves a sending contact to failed or pending_retry and
// records the error in the billing payload.
func (r *BillingContactRepositoryImpl) MarkDispatchResult(ctx context.Context, contactID uint, status models.ContactStatus, lastError string) error {
	db := r.getDB(ctx)

	contact, err := r.ByID(ctx, contactID)
	if err != nil {
		return err
	}
	if contact == nil {
		return fmt.Errorf("contact %d not found", contactID)
	}

	data := contact.BillingData
	if lastError != "" {
		data.SetLastError(lastError)
	}

	result := db.Model(&models.BillingContact{}).
		Where("id = ? AND status = ?", contactID, models.ContactStatusSending).
		Updates(map[string]any{
			"status":       status,
			"billing_data": data,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record dispatch result for contact %d: %w", contactID, result.Error)
	}

	return nil
}

// SetRenderedMessage stores the expanded body of a contact. Cycle contacts
// are rendered at dispatch time, after the claim.
func (r *BillingContactRepositoryImpl) SetRenderedMessage(ctx context.Context, contactID uint, body string) error {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingContact{}).
		Where("id = ?", contactID).
		Updates(map[string]any{
			"rendered_message": body,
			"updated_at":       utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set rendered message for contact %d: %w", contactID, result.Error)
	}

	return nil
}

// ListPendingByCampaign retrieves the next batch of sendable contacts for a
// campaign, oldest first.
func (r *BillingContactRepositoryImpl) ListPendingByCampaign(ctx context.Context, billingCampaignID uint, limit int) ([]*models.BillingContact, error) {
	db := r.getDB(ctx)

	var contacts []*models.BillingContact
	query := db.Where("billing_campaign_id = ? AND status IN ?",
		billingCampaignID, []models.ContactStatus{models.ContactStatusPending, models.ContactStatusPendingRetry}).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending contacts for campaign %d: %w", billingCampaignID, err)
	}

	return contacts, nil
}

// ListDueScheduled retrieves cycle contacts whose scheduled time has passed.
// Rows are locked with SKIP LOCKED so concurrent scheduler ticks never pick
// the same contact; callers must run inside a transaction.
func (r *BillingContactRepositoryImpl) ListDueScheduled(ctx context.Context, before time.Time, limit int) ([]*models.BillingContact, error) {
	db := r.getDB(ctx)

	var contacts []*models.BillingContact
	query := db.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("billing_cycle_id IS NOT NULL AND status IN ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?",
			[]models.ContactStatus{models.ContactStatusPending, models.ContactStatusPendingRetry}, before).
		Order("scheduled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due scheduled contacts: %w", err)
	}

	return contacts, nil
}

// CancelNonTerminalByCycle cancels every contact of a cycle that has not
// reached a final state yet, returning the number of rows affected.
func (r *BillingContactRepositoryImpl) CancelNonTerminalByCycle(ctx context.Context, cycleID uint) (int64, error) {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingContact{}).
		Where("billing_cycle_id = ? AND status IN ?",
			cycleID, []models.ContactStatus{models.ContactStatusPending, models.ContactStatusSending, models.ContactStatusPendingRetry}).
		Updates(map[string]any{
			"status":     models.ContactStatusCancelled,
			"version":    gorm.Expr("version + 1"),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cancel contacts for cycle %d: %w", cycleID, result.Error)
	}

	return result.RowsAffected, nil
}

// CountByStatusForCycle aggregates contact counts per status for a cycle
func (r *BillingContactRepositoryImpl) CountByStatusForCycle(ctx context.Context, cycleID uint) (map[models.ContactStatus]int64, error) {
	db := r.getDB(ctx)

	var rows []struct {
		Status models.ContactStatus
		Total  int64
	}
	err := db.Model(&models.BillingContact{}).
		Select("status, COUNT(*) AS total").
		Where("billing_cycle_id = ?", cycleID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count contacts for cycle %d: %w", cycleID, err)
	}

	out := make(map[models.ContactStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}

	return out, nil
}

// ByFilter retrieves billing contacts based on filter criteria
func (r *BillingContactRepositoryImpl) ByFilter(ctx context.Context, filter models.BillingContactFilter, orderBy string, limit, offset int) ([]*models.BillingContact, error) {
	db := r.getDB(ctx)

	var contacts []*models.BillingContact
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

	err := query.Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

// Count returns the number of billing contacts matching the filter
func (r *BillingContactRepositoryImpl) Count(ctx context.Context, filter models.BillingContactFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var contact models.BillingContact
	query := r.applyFilter(db.Model(&contact), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any billing contact matching the filter exists
func (r *BillingContactRepositoryImpl) Exists(ctx context.Context, filter models.BillingContactFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *BillingContactRepositoryImpl) applyFilter(db *gorm.DB, filter models.BillingContactFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.BillingCampaignID != nil {
		db = db.Where("billing_campaign_id = ?", *filter.BillingCampaignID)
	}
	if filter.BillingCycleID != nil {
		db = db.Where("billing_cycle_id = ?", *filter.BillingCycleID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.ScheduledBefore != nil {
		db = db.Where("scheduled_at <= ?", *filter.ScheduledBefore)
	}
	return db
}
