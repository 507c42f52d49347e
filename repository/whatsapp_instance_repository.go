package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapflow/billing-engine/models"
	"gorm.io/gorm"
)

// WhatsAppInstanceRepositoryImpl implements the WhatsAppInstanceRepository interface
type WhatsAppInstanceRepositoryImpl struct {
	*BaseRepository[models.WhatsAppInstance, models.WhatsAppInstanceFilter]
}

// NewWhatsAppInstanceRepository creates a new WhatsApp instance repository
func NewWhatsAppInstanceRepository(db *gorm.DB) WhatsAppInstanceRepository {
	return &WhatsAppInstanceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WhatsAppInstance, models.WhatsAppInstanceFilter](db),
	}
}

// ActiveForTenant retrieves the active gateway instance for a tenant, nil when
// the tenant has none configured.
func (r *WhatsAppInstanceRepositoryImpl) ActiveForTenant(ctx context.Context, tenantID uint) (*models.WhatsAppInstance, error) {
	db := r.getDB(ctx)

	var instance models.WhatsAppInstance
	err := db.Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("id DESC").
		First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active instance for tenant %d: %w", tenantID, err)
	}

	return &instance, nil
}

// ByFilter retrieves instances based on filter criteria
func (r *WhatsAppInstanceRepositoryImpl) ByFilter(ctx context.Context, filter models.WhatsAppInstanceFilter, orderBy string, limit, offset int) ([]*models.WhatsAppInstance, error) {
	db := r.getDB(ctx)

	var instances []*models.WhatsAppInstance
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

	err := query.Find(&instances).Error
	if err != nil {
		return nil, err
	}

	return instances, nil
}

// Count returns the number of instances matching the filter
func (r *WhatsAppInstanceRepositoryImpl) Count(ctx context.Context, filter models.WhatsAppInstanceFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var instance models.WhatsAppInstance
	query := r.applyFilter(db.Model(&instance), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any instance matching the filter exists
func (r *WhatsAppInstanceRepositoryImpl) Exists(ctx context.Context, filter models.WhatsAppInstanceFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *WhatsAppInstanceRepositoryImpl) applyFilter(db *gorm.DB, filter models.WhatsAppInstanceFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	return db
}
