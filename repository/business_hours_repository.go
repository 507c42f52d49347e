package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapflow/billing-engine/models"
	"gorm.io/gorm"
)

// BusinessHoursRepositoryImpl implements the BusinessHoursRepository interface
type BusinessHoursRepositoryImpl struct {
	*BaseRepository[models.BusinessHours, models.BusinessHoursFilter]
}

// NewBusinessHoursRepository creates a new business hours repository
func NewBusinessHoursRepository(db *gorm.DB) BusinessHoursRepository {
	return &BusinessHoursRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BusinessHours, models.BusinessHoursFilter](db),
	}
}

// Effective resolves the business hours record that governs sends for a
// tenant. A department-specific record wins over the tenant-wide one; nil
// means the tenant has no restriction.
func (r *BusinessHoursRepositoryImpl) Effective(ctx context.Context, tenantID uint, department *string) (*models.BusinessHours, error) {
	db := r.getDB(ctx)

	if department != nil && *department != "" {
		var specific models.BusinessHours
		err := db.Where("tenant_id = ? AND department = ? AND is_active = ?", tenantID, *department, true).
			Last(&specific).Error
		if err == nil {
			return &specific, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to find business hours for tenant %d department %s: %w", tenantID, *department, err)
		}
	}

	var general models.BusinessHours
	err := db.Where("tenant_id = ? AND department IS NULL AND is_active = ?", tenantID, true).
		Last(&general).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find business hours for tenant %d: %w", tenantID, err)
	}

	return &general, nil
}

// ByFilter retrieves business hours records based on filter criteria
func (r *BusinessHoursRepositoryImpl) ByFilter(ctx context.Context, filter models.BusinessHoursFilter, orderBy string, limit, offset int) ([]*models.BusinessHours, error) {
	db := r.getDB(ctx)

	var records []*models.BusinessHours
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

	err := query.Find(&records).Error
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Count returns the number of business hours records matching the filter
func (r *BusinessHoursRepositoryImpl) Count(ctx context.Context, filter models.BusinessHoursFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var record models.BusinessHours
	query := r.applyFilter(db.Model(&record), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any business hours record matching the filter exists
func (r *BusinessHoursRepositoryImpl) Exists(ctx context.Context, filter models.BusinessHoursFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *BusinessHoursRepositoryImpl) applyFilter(db *gorm.DB, filter models.BusinessHoursFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Department != nil {
		db = db.Where("department = ?", *filter.Department)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	return db
}
