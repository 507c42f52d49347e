package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/zapflow/billing-engine/models"
	"gorm.io/gorm"
)

// BillingTemplateRepositoryImpl implements the BillingTemplateRepository interface
type BillingTemplateRepositoryImpl struct {
	*BaseRepository[models.BillingTemplate, models.BillingTemplateFilter]
}

// NewBillingTemplateRepository creates a new billing template repository
func NewBillingTemplateRepository(db *gorm.DB) BillingTemplateRepository {
	return &BillingTemplateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BillingTemplate, models.BillingTemplateFilter](db),
	}
}

// ActiveByTenantAndType retrieves the newest active template of the given type
// for a tenant, with its variations loaded. Nil when the tenant has none.
func (r *BillingTemplateRepositoryImpl) ActiveByTenantAndType(ctx context.Context, tenantID uint, templateType models.TemplateType) (*models.BillingTemplate, error) {
	db := r.getDB(ctx)

	var template models.BillingTemplate
	err := db.Where("tenant_id = ? AND type = ? AND is_active = ?", tenantID, templateType, true).
		Order("id DESC").
		Preload("Variations").
		First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active template for tenant %d type %s: %w", tenantID, templateType, err)
	}

	return &template, nil
}

// ByIDWithVariations retrieves a template by ID with variations loaded
func (r *BillingTemplateRepositoryImpl) ByIDWithVariations(ctx context.Context, id uint) (*models.BillingTemplate, error) {
	db := r.getDB(ctx)

	var template models.BillingTemplate
	err := db.Preload("Variations").Last(&template, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find template by ID %d: %w", id, err)
	}

	return &template, nil
}

// ByFilter retrieves templates based on filter criteria
func (r *BillingTemplateRepositoryImpl) ByFilter(ctx context.Context, filter models.BillingTemplateFilter, orderBy string, limit, offset int) ([]*models.BillingTemplate, error) {
	db := r.getDB(ctx)

	var templates []*models.BillingTemplate
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

	query = query.Preload("Variations")

	err := query.Find(&templates).Error
	if err != nil {
		return nil, err
	}

	return templates, nil
}

// Count returns the number of templates matching the filter
func (r *BillingTemplateRepositoryImpl) Count(ctx context.Context, filter models.BillingTemplateFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var template models.BillingTemplate
	query := r.applyFilter(db.Model(&template), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any template matching the filter exists
func (r *BillingTemplateRepositoryImpl) Exists(ctx context.Context, filter models.BillingTemplateFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *BillingTemplateRepositoryImpl) applyFilter(db *gorm.DB, filter models.BillingTemplateFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Name != nil {
		db = db.Where("name = ?", *filter.Name)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	return db
}
