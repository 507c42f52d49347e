package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BillingCycleRepositoryImpl implements the BillingCycleRepository interface
type BillingCycleRepositoryImpl struct {
	*BaseRepository[models.BillingCycle, models.BillingCycleFilter]
}

// NewBillingCycleRepository creates a new billing cycle repository
func NewBillingCycleRepository(db *gorm.DB) BillingCycleRepository {
	return &BillingCycleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BillingCycle, models.BillingCycleFilter](db),
	}
}

// ByUUID retrieves a billing cycle by UUID
func (r *BillingCycleRepositoryImpl) ByUUID(ctx context.Context, rawUUID string) (*models.BillingCycle, error) {
	parsedUUID, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	filter := models.BillingCycleFilter{UUID: &parsedUUID}
	cycles, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find billing cycle by UUID: %w", err)
	}

	if len(cycles) == 0 {
		return nil, nil
	}

	return cycles[0], nil
}

// CreateIfAbsent inserts a cycle unless the tenant already registered that
// external billing id. Returns whether the row was inserted, so concurrent
// submissions of the same billing resolve to the single surviving row.
func (r *BillingCycleRepositoryImpl) CreateIfAbsent(ctx context.Context, cycle *models.BillingCycle) (bool, error) {
	db := r.getDB(ctx)

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_billing_id"}},
		DoNothing: true,
	}).Create(cycle)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create billing cycle: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// ByTenantAndExternalID retrieves a cycle by the external billing reference,
// nil when the tenant never registered that billing.
func (r *BillingCycleRepositoryImpl) ByTenantAndExternalID(ctx context.Context, tenantID uint, externalBillingID string) (*models.BillingCycle, error) {
	db := r.getDB(ctx)

	var cycle models.BillingCycle
	err := db.Where("tenant_id = ? AND external_billing_id = ?", tenantID, externalBillingID).
		Last(&cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find billing cycle by external ID: %w", err)
	}

	return &cycle, nil
}

// ByIDLocked retrieves a cycle with a row lock. Callers must run inside a
// transaction.
func (r *BillingCycleRepositoryImpl) ByIDLocked(ctx context.Context, id uint) (*models.BillingCycle, error) {
	db := r.getDB(ctx)

	var cycle models.BillingCycle
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Last(&cycle, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock billing cycle %d: %w", id, err)
	}

	return &cycle, nil
}

// Update persists the full cycle row
func (r *BillingCycleRepositoryImpl) Update(ctx context.Context, cycle *models.BillingCycle) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	cycle.UpdatedAt = &now

	err = db.Save(cycle).Error
	if err != nil {
		return fmt.Errorf("failed to update billing cycle: %w", err)
	}

	return nil
}

// UpdateMessageCounters atomically adjusts cycle message counters
func (r *BillingCycleRepositoryImpl) UpdateMessageCounters(ctx context.Context, cycleID uint, sentDelta, failedDelta int) error {
	db := r.getDB(ctx)

	result := db.Model(&models.BillingCycle{}).
		Where("id = ?", cycleID).
		Updates(map[string]any{
			"sent_messages":   gorm.Expr("sent_messages + ?", sentDelta),
			"failed_messages": gorm.Expr("failed_messages + ?", failedDelta),
			"updated_at":      utils.UTCNow(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update counters for cycle %d: %w", cycleID, result.Error)
	}

	return nil
}

// ByFilter retrieves billing cycles based on filter criteria
func (r *BillingCycleRepositoryImpl) ByFilter(ctx context.Context, filter models.BillingCycleFilter, orderBy string, limit, offset int) ([]*models.BillingCycle, error) {
	db := r.getDB(ctx)

	var cycles []*models.BillingCycle
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

	err := query.Find(&cycles).Error
	if err != nil {
		return nil, err
	}

	return cycles, nil
}

// Count returns the number of billing cycles matching the filter
func (r *BillingCycleRepositoryImpl) Count(ctx context.Context, filter models.BillingCycleFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var cycle models.BillingCycle
	query := r.applyFilter(db.Model(&cycle), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any billing cycle matching the filter exists
func (r *BillingCycleRepositoryImpl) Exists(ctx context.Context, filter models.BillingCycleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *BillingCycleRepositoryImpl) applyFilter(db *gorm.DB, filter models.BillingCycleFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.ExternalBillingID != nil {
		db = db.Where("external_billing_id = ?", *filter.ExternalBillingID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.DueBefore != nil {
		db = db.Where("due_date <= ?", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		db = db.Where("due_date >= ?", *filter.DueAfter)
	}
	return db
}
