package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// CycleStatus represents the lifecycle status of a billing cycle
type CycleStatus string

const (
	CycleStatusActive    CycleStatus = "active"
	CycleStatusCancelled CycleStatus = "cancelled"
	CycleStatusPaid      CycleStatus = "paid"
	CycleStatusCompleted CycleStatus = "completed"
)

// String returns the string representation of the status
func (s CycleStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CycleStatus) Valid() bool {
	switch s {
	case CycleStatusActive, CycleStatusCancelled, CycleStatusPaid, CycleStatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the cycle can no longer schedule messages.
// Cancelled and paid cycles may still be reactivated on resubmission;
// completed is final.
func (s CycleStatus) IsTerminal() bool {
	return s != CycleStatusActive
}

// CanReactivate reports whether a resubmission of the same external billing id
// may reset the cycle to active.
func (s CycleStatus) CanReactivate() bool {
	return s == CycleStatusCancelled || s == CycleStatusPaid
}

// Scan implements the sql.Scanner interface for CycleStatus
func (s *CycleStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CycleStatus(v)
	case []byte:
		*s = CycleStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CycleStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CycleStatus
func (s CycleStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CycleStatus: %s", s)
	}
	return string(s), nil
}

// BillingCycle is the debt-collection dossier for one (tenant, external
// billing id) pair, unique on that pair. It owns up to 6 scheduled contacts
// around the due date.
type BillingCycle struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uk_billing_cycles_uuid" json:"uuid"`
	TenantID          uint        `gorm:"not null;uniqueIndex:uk_billing_cycles_tenant_external;index:idx_billing_cycles_tenant" json:"tenant_id"`
	ExternalBillingID string      `gorm:"type:varchar(255);not null;uniqueIndex:uk_billing_cycles_tenant_external" json:"external_billing_id"`
	ContactPhone      string      `gorm:"type:varchar(32);not null" json:"contact_phone"`
	ContactName       string      `gorm:"type:varchar(255);not null" json:"contact_name"`
	DueDate           time.Time   `gorm:"type:date;not null" json:"due_date"`
	BillingData       BillingData `gorm:"type:jsonb;not null" json:"billing_data"`
	NotifyBeforeDue   *bool       `gorm:"not null;default:true" json:"notify_before_due"`
	NotifyAfterDue    *bool       `gorm:"not null;default:true" json:"notify_after_due"`
	Status            CycleStatus `gorm:"type:billing_cycle_status;not null;default:'active';index:idx_billing_cycles_status" json:"status"`
	TotalMessages     int         `gorm:"not null;default:0" json:"total_messages"`
	SentMessages      int         `gorm:"not null;default:0" json:"sent_messages"`
	FailedMessages    int         `gorm:"not null;default:0" json:"failed_messages"`
	CancelledAt       *time.Time  `json:"cancelled_at,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	CreatedAt         time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         *time.Time  `json:"updated_at,omitempty"`

	// Relations
	Tenant   *Tenant          `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
	Contacts []BillingContact `gorm:"foreignKey:BillingCycleID" json:"contacts,omitempty"`
}

// TableName returns the table name for the model
func (BillingCycle) TableName() string {
	return "billing_cycles"
}

// BeforeCreate is called before creating a new record
func (c *BillingCycle) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CycleStatusActive
	}
	if c.BillingData == nil {
		c.BillingData = BillingData{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *BillingCycle) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// BillingCycleFilter represents filter criteria for billing cycles
type BillingCycleFilter struct {
	ID                *uint        `json:"id,omitempty"`
	UUID              *uuid.UUID   `json:"uuid,omitempty"`
	TenantID          *uint        `json:"tenant_id,omitempty"`
	ExternalBillingID *string      `json:"external_billing_id,omitempty"`
	Status            *CycleStatus `json:"status,omitempty"`
	DueBefore         *time.Time   `json:"due_before,omitempty"`
	DueAfter          *time.Time   `json:"due_after,omitempty"`
}
