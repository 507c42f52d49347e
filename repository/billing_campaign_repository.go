package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/models"
	"gorm.io/gorm"
)

// BillingCampaignRepositoryImpl implements the BillingCampaignRepository interface
type BillingCampaignRepositoryImpl struct {
	*BaseRepository[models.BillingCampaign, models.BillingCampaignFilter]
}

// NewBillingCampaignRepository creates a new billing campaign repository
func NewBillingCampaignRepository(db *gorm.DB) BillingCampaignRepository {
	return &BillingCampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BillingCampaign, models.BillingCampaignFilter](db),
	}
}

// ByUUID retrieves a billing campaign by UUID
func (r *BillingCampaignRepositoryImpl) ByUUID(ctx context.Context, rawUUID string) (*models.BillingCampaign, error) {
	parsedUUID, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID format: %w", err)
	}

	filter := models.BillingCampaignFilter{UUID: &parsedUUID}
	campaigns, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find billing campaign by UUID: %w", err)
	}

	if len(campaigns) == 0 {
		return nil, nil
	}

	return campaigns[0], nil
}

// ByTenantAndExternalID retrieves a billing campaign by the caller-supplied
// idempotency key, nil when no campaign with that key exists.
func (r *BillingCampaignRepositoryImpl) ByTenantAndExternalID(ctx context.Context, tenantID uint, externalID string) (*models.BillingCampaign, error) {
	db := r.getDB(ctx)

	var campaign models.BillingCampaign
	err := db.Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Preload("Queue").
		Last(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find billing campaign by external ID: %w", err)
	}

	return &campaign, nil
}

// ByFilter retrieves billing campaigns based on filter criteria
func (r *BillingCampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.BillingCampaignFilter, orderBy string, limit, offset int) ([]*models.BillingCampaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.BillingCampaign
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

	query = query.Preload("Campaign").
		Preload("Queue")

	err := query.Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	return campaigns, nil
}

// Count returns the number of billing campaigns matching the filter
func (r *BillingCampaignRepositoryImpl) Count(ctx context.Context, filter models.BillingCampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var campaign models.BillingCampaign
	query := r.applyFilter(db.Model(&campaign), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any billing campaign matching the filter exists
func (r *BillingCampaignRepositoryImpl) Exists(ctx context.Context, filter models.BillingCampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *BillingCampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.BillingCampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.TenantID != nil {
		db = db.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.ExternalID != nil {
		db = db.Where("external_id = ?", *filter.ExternalID)
	}
	return db
}
