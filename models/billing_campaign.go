package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// Campaign is the base unit of batch work created by one external request.
type Campaign struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	TenantID   uint       `gorm:"not null;index:idx_campaigns_tenant" json:"tenant_id"`
	InstanceID *uint      `gorm:"index:idx_campaigns_instance" json:"instance_id,omitempty"`
	CreatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`

	// Relations
	Tenant   *Tenant           `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
	Instance *WhatsAppInstance `gorm:"foreignKey:InstanceID;references:ID" json:"instance,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// CampaignFilter represents filter criteria for base campaigns
type CampaignFilter struct {
	ID         *uint      `json:"id,omitempty"`
	UUID       *uuid.UUID `json:"uuid,omitempty"`
	TenantID   *uint      `json:"tenant_id,omitempty"`
	InstanceID *uint      `json:"instance_id,omitempty"`
}

// BillingCampaign types a base campaign with the billing template type and the
// caller-supplied idempotency key. ExternalID is unique per tenant.
type BillingCampaign struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_billing_campaigns_uuid" json:"uuid"`
	CampaignID uint         `gorm:"not null;uniqueIndex:uk_billing_campaigns_campaign" json:"campaign_id"`
	TenantID   uint         `gorm:"not null;uniqueIndex:uk_billing_campaigns_tenant_external;index:idx_billing_campaigns_tenant" json:"tenant_id"`
	Type       TemplateType `gorm:"type:billing_template_type;not null;index:idx_billing_campaigns_type" json:"type"`
	ExternalID *string      `gorm:"type:varchar(255);uniqueIndex:uk_billing_campaigns_tenant_external" json:"external_id,omitempty"`
	TemplateID uint         `gorm:"not null" json:"template_id"`
	CreatedAt  time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time   `json:"updated_at,omitempty"`

	// Relations
	Campaign *Campaign        `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
	Template *BillingTemplate `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
	Queue    *BillingQueue    `gorm:"foreignKey:BillingCampaignID" json:"queue,omitempty"`
}

// TableName returns the table name for the model
func (BillingCampaign) TableName() string {
	return "billing_campaigns"
}

// BeforeCreate is called before creating a new record
func (c *BillingCampaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *BillingCampaign) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// BillingCampaignFilter represents filter criteria for billing campaigns
type BillingCampaignFilter struct {
	ID         *uint         `json:"id,omitempty"`
	UUID       *uuid.UUID    `json:"uuid,omitempty"`
	CampaignID *uint         `json:"campaign_id,omitempty"`
	TenantID   *uint         `json:"tenant_id,omitempty"`
	Type       *TemplateType `json:"type,omitempty"`
	ExternalID *string       `json:"external_id,omitempty"`
}
