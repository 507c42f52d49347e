package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// Gateway connection states as reported by the WhatsApp gateway.
const (
	ConnectionStateOpen       = "open"
	ConnectionStateConnecting = "connecting"
	ConnectionStateClosed     = "closed"
)

// WhatsAppInstance identifies the gateway account a tenant may send through.
// The engine only reads these rows; provisioning happens elsewhere.
type WhatsAppInstance struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_whatsapp_instances_uuid" json:"uuid"`
	TenantID        uint       `gorm:"not null;index:idx_whatsapp_instances_tenant" json:"tenant_id"`
	InstanceName    string     `gorm:"type:varchar(255);not null" json:"instance_name"`
	APIURL          string     `gorm:"type:varchar(512);not null" json:"api_url"`
	APIKey          string     `gorm:"type:varchar(512);not null" json:"-"`
	IsActive        *bool      `gorm:"not null;default:true" json:"is_active"`
	ConnectionState string     `gorm:"type:varchar(32);not null;default:'closed'" json:"connection_state"`
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
}

// TableName returns the table name for the model
func (WhatsAppInstance) TableName() string {
	return "whatsapp_instances"
}

// BeforeCreate is called before creating a new record
func (i *WhatsAppInstance) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == uuid.Nil {
		i.UUID = uuid.New()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (i *WhatsAppInstance) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	i.UpdatedAt = &now
	return nil
}

// IsConnected reports whether the gateway considers the session usable.
func (i *WhatsAppInstance) IsConnected() bool {
	return i.ConnectionState == ConnectionStateOpen
}

// WhatsAppInstanceFilter represents filter criteria for instances
type WhatsAppInstanceFilter struct {
	ID       *uint      `json:"id,omitempty"`
	UUID     *uuid.UUID `json:"uuid,omitempty"`
	TenantID *uint      `json:"tenant_id,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}
