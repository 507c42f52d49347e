package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// MaxRenderedMessageLength is the WhatsApp text body limit.
const MaxRenderedMessageLength = 4096

// ContactStatus represents the delivery status of a single scheduled send
type ContactStatus string

const (
	ContactStatusPending      ContactStatus = "pending"
	ContactStatusSending      ContactStatus = "sending"
	ContactStatusSent         ContactStatus = "sent"
	ContactStatusDelivered    ContactStatus = "delivered"
	ContactStatusRead         ContactStatus = "read"
	ContactStatusFailed       ContactStatus = "failed"
	ContactStatusPendingRetry ContactStatus = "pending_retry"
	ContactStatusCancelled    ContactStatus = "cancelled"
)

// String returns the string representation of the status
func (s ContactStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusPending, ContactStatusSending, ContactStatusSent,
		ContactStatusDelivered, ContactStatusRead, ContactStatusFailed,
		ContactStatusPendingRetry, ContactStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a status is final. Terminal statuses never
// transition out.
func (s ContactStatus) IsTerminal() bool {
	switch s {
	case ContactStatusSent, ContactStatusDelivered, ContactStatusRead,
		ContactStatusFailed, ContactStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if the contact can transition to the given status
func (s ContactStatus) CanTransitionTo(newStatus ContactStatus) bool {
	if s.IsTerminal() {
		// sent may still be upgraded by delivery receipts
		if s == ContactStatusSent {
			return newStatus == ContactStatusDelivered || newStatus == ContactStatusRead
		}
		if s == ContactStatusDelivered {
			return newStatus == ContactStatusRead
		}
		return false
	}
	switch s {
	case ContactStatusPending, ContactStatusPendingRetry:
		return newStatus == ContactStatusSending || newStatus == ContactStatusCancelled || newStatus == ContactStatusFailed
	case ContactStatusSending:
		return newStatus == ContactStatusSent || newStatus == ContactStatusFailed ||
			newStatus == ContactStatusPendingRetry || newStatus == ContactStatusCancelled
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for ContactStatus
func (s *ContactStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ContactStatus(v)
	case []byte:
		*s = ContactStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ContactStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ContactStatus
func (s ContactStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ContactStatus: %s", s)
	}
	return string(s), nil
}

// BillingData is the opaque variable payload attached to a contact or cycle.
// Workers also record `last_error` here on failure.
type BillingData map[string]any

// Value implements the driver.Valuer interface for BillingData
func (d BillingData) Value() (driver.Value, error) {
	if d == nil {
		return json.Marshal(BillingData{})
	}
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for BillingData
func (d *BillingData) Scan(value any) error {
	if value == nil {
		*d = BillingData{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into BillingData", value)
	}

	return json.Unmarshal(bytes, d)
}

// SetLastError stores the last send error in the payload.
func (d *BillingData) SetLastError(msg string) {
	if *d == nil {
		*d = BillingData{}
	}
	(*d)["last_error"] = msg
}

// GetString returns a string field from the payload, empty when absent.
func (d BillingData) GetString(key string) string {
	if v, ok := d[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// BillingContact is one scheduled send. Campaign-generated contacts reference
// a billing campaign; cycle-scheduled contacts reference a billing cycle and
// carry scheduled_at. Version is the optimistic lock the workers CAS on.
type BillingContact struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_billing_contacts_uuid" json:"uuid"`
	TenantID          uint          `gorm:"not null;index:idx_billing_contacts_tenant" json:"tenant_id"`
	BillingCampaignID *uint         `gorm:"index:idx_billing_contacts_billing_campaign" json:"billing_campaign_id,omitempty"`
	BillingCycleID    *uint         `gorm:"index:idx_billing_contacts_billing_cycle" json:"billing_cycle_id,omitempty"`
	TemplateID        *uint         `json:"template_id,omitempty"`
	VariationOrder    int           `gorm:"not null;default:1" json:"variation_order"`
	ContactName       string        `gorm:"type:varchar(255);not null" json:"contact_name"`
	Phone             string        `gorm:"type:varchar(32);not null" json:"phone"`
	RenderedMessage   string        `gorm:"type:text;not null" json:"rendered_message"`
	Status            ContactStatus `gorm:"type:billing_contact_status;not null;default:'pending';index:idx_billing_contacts_status" json:"status"`
	ScheduledAt       *time.Time    `gorm:"index:idx_billing_contacts_scheduled_at" json:"scheduled_at,omitempty"`
	SentAt            *time.Time    `json:"sent_at,omitempty"`
	GatewayMessageID  *string       `gorm:"type:varchar(255)" json:"gateway_message_id,omitempty"`
	Version           int           `gorm:"not null;default:0" json:"version"`
	BillingData       BillingData   `gorm:"type:jsonb;not null" json:"billing_data"`
	CreatedAt         time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         *time.Time    `json:"updated_at,omitempty"`

	// Relations
	BillingCampaign *BillingCampaign `gorm:"foreignKey:BillingCampaignID;references:ID" json:"billing_campaign,omitempty"`
	BillingCycle    *BillingCycle    `gorm:"foreignKey:BillingCycleID;references:ID" json:"billing_cycle,omitempty"`
}

// TableName returns the table name for the model
func (BillingContact) TableName() string {
	return "billing_contacts"
}

// BeforeCreate is called before creating a new record
func (c *BillingContact) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = ContactStatusPending
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
func (c *BillingContact) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	c.UpdatedAt = &now
	return nil
}

// BillingContactFilter represents filter criteria for billing contacts
type BillingContactFilter struct {
	ID                *uint          `json:"id,omitempty"`
	UUID              *uuid.UUID     `json:"uuid,omitempty"`
	TenantID          *uint          `json:"tenant_id,omitempty"`
	BillingCampaignID *uint          `json:"billing_campaign_id,omitempty"`
	BillingCycleID    *uint          `json:"billing_cycle_id,omitempty"`
	Status            *ContactStatus `json:"status,omitempty"`
	ScheduledBefore   *time.Time     `json:"scheduled_before,omitempty"`
}
