package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// Tenant represents an owning principal of the billing engine. Tenants are
// created by the platform layer; the engine never destroys them.
type Tenant struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_tenants_uuid" json:"uuid"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Timezone  string     `gorm:"type:varchar(64);not null;default:'America/Sao_Paulo'" json:"timezone"`
	IsActive  *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	BillingConfig *BillingConfig `gorm:"foreignKey:TenantID" json:"billing_config,omitempty"`
}

// TableName returns the table name for the model
func (Tenant) TableName() string {
	return "tenants"
}

// BeforeCreate is called before creating a new record
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (t *Tenant) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	t.UpdatedAt = &now
	return nil
}

// Location resolves the tenant timezone, falling back to UTC on bad data.
func (t *Tenant) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BillingConfig holds per-tenant throttling and retry knobs for the engine.
type BillingConfig struct {
	ID                   uint          `gorm:"primaryKey" json:"id"`
	TenantID             uint          `gorm:"not null;uniqueIndex:uk_billing_configs_tenant" json:"tenant_id"`
	MessagesPerMinute    int           `gorm:"not null;default:20" json:"messages_per_minute"`
	MaxRetries           int           `gorm:"not null;default:3" json:"max_retries"`
	MaxBatchContacts     int           `gorm:"not null;default:100" json:"max_batch_contacts"`
	BusinessHoursEnabled *bool         `gorm:"not null;default:true" json:"business_hours_enabled"`
	NotifyBeforeDays     pq.Int64Array `gorm:"type:integer[];not null;default:'{5,3,1}'" json:"notify_before_days"`
	NotifyAfterDays      pq.Int64Array `gorm:"type:integer[];not null;default:'{1,3,5}'" json:"notify_after_days"`
	CreatedAt            time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt            *time.Time    `json:"updated_at,omitempty"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
}

// TableName returns the table name for the model
func (BillingConfig) TableName() string {
	return "billing_configs"
}

// BeforeCreate is called before creating a new record
func (c *BillingConfig) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	if c.MessagesPerMinute <= 0 {
		c.MessagesPerMinute = 20
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxBatchContacts <= 0 {
		c.MaxBatchContacts = 100
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *BillingConfig) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// SendInterval returns the throttle interval between consecutive sends.
// Floor of 3 seconds regardless of configuration.
func (c *BillingConfig) SendInterval() time.Duration {
	mpm := c.MessagesPerMinute
	if mpm <= 0 {
		mpm = 20
	}
	interval := time.Minute / time.Duration(mpm)
	if interval < 3*time.Second {
		interval = 3 * time.Second
	}
	return interval
}

// TenantFilter represents filter criteria for tenants
type TenantFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	Name     *string    `json:"name,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
