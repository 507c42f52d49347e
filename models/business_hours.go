package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// DaySchedule encodes one weekday of a business-hours record. Start and End
// are local wall-clock times in "HH:MM".
type DaySchedule struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
}

// WeekSchedule holds the 7 weekday schedules, indexed by time.Weekday
// (Sunday = 0).
type WeekSchedule [7]DaySchedule

// Value implements the driver.Valuer interface for WeekSchedule
func (w WeekSchedule) Value() (driver.Value, error) {
	return json.Marshal(w)
}

// Scan implements the sql.Scanner interface for WeekSchedule
func (w *WeekSchedule) Scan(value any) error {
	if value == nil {
		*w = WeekSchedule{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into WeekSchedule", value)
	}

	return json.Unmarshal(bytes, w)
}

// BusinessHours configures the sending window for a tenant, optionally
// refined per department. The effective record for a department falls back
// to the tenant-wide record (Department nil) when no specific one exists.
type BusinessHours struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TenantID   uint           `gorm:"not null;index:idx_business_hours_tenant" json:"tenant_id"`
	Department *string        `gorm:"type:varchar(128)" json:"department,omitempty"`
	Timezone   string         `gorm:"type:varchar(64);not null;default:'America/Sao_Paulo'" json:"timezone"`
	Weekdays   WeekSchedule   `gorm:"type:jsonb;not null" json:"weekdays"`
	Holidays   pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"holidays"`
	IsActive   *bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`

	// Relations
	Tenant *Tenant `gorm:"foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
}

// TableName returns the table name for the model
func (BusinessHours) TableName() string {
	return "business_hours"
}

// BeforeCreate is called before creating a new record
func (b *BusinessHours) BeforeCreate(tx *gorm.DB) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (b *BusinessHours) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	b.UpdatedAt = &now
	return nil
}

// Location resolves the record timezone, falling back to UTC on bad data.
func (b *BusinessHours) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsHoliday reports whether the given local date (YYYY-MM-DD) is a holiday.
func (b *BusinessHours) IsHoliday(localDate string) bool {
	for _, h := range b.Holidays {
		if h == localDate {
			return true
		}
	}
	return false
}

// BusinessHoursFilter represents filter criteria for business hours records
type BusinessHoursFilter struct {
	ID         *uint   `json:"id,omitempty"`
	TenantID   *uint   `json:"tenant_id,omitempty"`
	Department *string `json:"department,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}
