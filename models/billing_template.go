package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// TemplateType represents the kind of billing message a template produces
type TemplateType string

const (
	TemplateTypeOverdue      TemplateType = "overdue"
	TemplateTypeUpcoming     TemplateType = "upcoming"
	TemplateTypeNotification TemplateType = "notification"
)

// String returns the string representation of the type
func (t TemplateType) String() string {
	return string(t)
}

// Valid checks if the template type is valid
func (t TemplateType) Valid() bool {
	switch t {
	case TemplateTypeOverdue, TemplateTypeUpcoming, TemplateTypeNotification:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TemplateType
func (t *TemplateType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = TemplateType(v)
	case []byte:
		*t = TemplateType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TemplateType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TemplateType
func (t TemplateType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid TemplateType: %s", t)
	}
	return string(t), nil
}

// BillingTemplate is a named message artifact per tenant. Its variations are
// rotated round-robin across recipients to dilute content.
type BillingTemplate struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:uk_billing_templates_uuid" json:"uuid"`
	TenantID  uint         `gorm:"not null;uniqueIndex:uk_billing_templates_tenant_name_type;index:idx_billing_templates_tenant" json:"tenant_id"`
	Name      string       `gorm:"type:varchar(255);not null;uniqueIndex:uk_billing_templates_tenant_name_type" json:"name"`
	Type      TemplateType `gorm:"type:billing_template_type;not null;uniqueIndex:uk_billing_templates_tenant_name_type;index:idx_billing_templates_type" json:"type"`
	IsActive  *bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`

	// Relations
	Tenant     *Tenant                    `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
	Variations []BillingTemplateVariation `gorm:"foreignKey:TemplateID" json:"variations,omitempty"`
}

// TableName returns the table name for the model
func (BillingTemplate) TableName() string {
	return "billing_templates"
}

// BeforeCreate is called before creating a new record
func (t *BillingTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (t *BillingTemplate) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	t.UpdatedAt = &now
	return nil
}

// ActiveVariations returns the active variations ordered by their rotation order.
func (t *BillingTemplate) ActiveVariations() []BillingTemplateVariation {
	active := make([]BillingTemplateVariation, 0, len(t.Variations))
	for _, v := range t.Variations {
		if utils.IsTrue(v.IsActive) {
			active = append(active, v)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Order < active[j].Order })
	return active
}

// PickVariation selects a variation round-robin by recipient index.
// Round-robin is deliberate; randomization would make the chosen variation
// unauditable for a given recipient.
func (t *BillingTemplate) PickVariation(index int) *BillingTemplateVariation {
	active := t.ActiveVariations()
	if len(active) == 0 {
		return nil
	}
	v := active[index%len(active)]
	return &v
}

// BillingTemplateVariation is one of the 1..5 alternative bodies of a template.
type BillingTemplateVariation struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TemplateID uint       `gorm:"not null;uniqueIndex:uk_billing_template_variations_order;index:idx_billing_template_variations_template" json:"template_id"`
	Order      int        `gorm:"column:variation_order;not null;uniqueIndex:uk_billing_template_variations_order" json:"order"`
	Body       string     `gorm:"type:text;not null" json:"body"`
	IsActive   *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`

	// Relations
	Template *BillingTemplate `gorm:"foreignKey:TemplateID;references:ID" json:"template,omitempty"`
}

// TableName returns the table name for the model
func (BillingTemplateVariation) TableName() string {
	return "billing_template_variations"
}

// BeforeCreate is called before creating a new record
func (v *BillingTemplateVariation) BeforeCreate(tx *gorm.DB) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (v *BillingTemplateVariation) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	v.UpdatedAt = &now
	return nil
}

// BillingTemplateFilter represents filter criteria for billing templates
type BillingTemplateFilter struct {
	ID       *uint         `json:"id,omitempty"`
	UUID     *uuid.UUID    `json:"uuid,omitempty"`
	TenantID *uint         `json:"tenant_id,omitempty"`
	Name     *string       `json:"name,omitempty"`
	Type     *TemplateType `json:"type,omitempty"`
	IsActive *bool         `json:"is_active,omitempty"`
}
