package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// QueueStatus represents the processing status of a billing queue
type QueueStatus string

const (
	QueueStatusPending             QueueStatus = "pending"
	QueueStatusRunning             QueueStatus = "running"
	QueueStatusPaused              QueueStatus = "paused"
	QueueStatusPausedBusinessHours QueueStatus = "paused_business_hours"
	QueueStatusPausedInstanceDown  QueueStatus = "paused_instance_down"
	QueueStatusCompleted           QueueStatus = "completed"
	QueueStatusCancelled           QueueStatus = "cancelled"
)

// String returns the string representation of the status
func (s QueueStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusPending, QueueStatusRunning, QueueStatusPaused,
		QueueStatusPausedBusinessHours, QueueStatusPausedInstanceDown,
		QueueStatusCompleted, QueueStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the queue reached a final state.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusCancelled
}

// IsPaused reports whether the queue is parked in one of the pause states.
func (s QueueStatus) IsPaused() bool {
	return s == QueueStatusPaused || s == QueueStatusPausedBusinessHours || s == QueueStatusPausedInstanceDown
}

// Scan implements the sql.Scanner interface for QueueStatus
func (s *QueueStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = QueueStatus(v)
	case []byte:
		*s = QueueStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into QueueStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for QueueStatus
func (s QueueStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid QueueStatus: %s", s)
	}
	return string(s), nil
}

// CanTransitionTo checks if the queue can transition to the given status
func (s QueueStatus) CanTransitionTo(newStatus QueueStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case QueueStatusPending:
		return newStatus == QueueStatusRunning || newStatus.IsPaused() || newStatus == QueueStatusCancelled
	case QueueStatusRunning:
		return newStatus == QueueStatusPending || newStatus.IsPaused() ||
			newStatus == QueueStatusCompleted || newStatus == QueueStatusCancelled
	case QueueStatusPaused, QueueStatusPausedBusinessHours, QueueStatusPausedInstanceDown:
		return newStatus == QueueStatusPending || newStatus == QueueStatusRunning || newStatus == QueueStatusCancelled
	default:
		return false
	}
}

// BillingQueue is the work-tracking entity for one billing campaign. Its
// counters and status are the user-visible ground truth of progress.
type BillingQueue struct {
	ID                uint        `gorm:"primaryKey" json:"id"`
	UUID              uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uk_billing_queues_uuid" json:"uuid"`
	BillingCampaignID uint        `gorm:"not null;uniqueIndex:uk_billing_queues_billing_campaign" json:"billing_campaign_id"`
	TenantID          uint        `gorm:"not null;index:idx_billing_queues_tenant" json:"tenant_id"`
	Status            QueueStatus `gorm:"type:billing_queue_status;not null;default:'pending';index:idx_billing_queues_status" json:"status"`
	TotalContacts     int         `gorm:"not null;default:0" json:"total_contacts"`
	ProcessedContacts int         `gorm:"not null;default:0" json:"processed_contacts"`
	SentCount         int         `gorm:"not null;default:0" json:"sent_count"`
	FailedCount       int         `gorm:"not null;default:0" json:"failed_count"`
	ProcessingBy      *string     `gorm:"type:varchar(128)" json:"processing_by,omitempty"`
	LastHeartbeat     *time.Time  `json:"last_heartbeat,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	CreatedAt         time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         *time.Time  `json:"updated_at,omitempty"`

	// Relations
	BillingCampaign *BillingCampaign `gorm:"foreignKey:BillingCampaignID;references:ID" json:"billing_campaign,omitempty"`
}

// TableName returns the table name for the model
func (BillingQueue) TableName() string {
	return "billing_queues"
}

// BeforeCreate is called before creating a new record
func (q *BillingQueue) BeforeCreate(tx *gorm.DB) error {
	if q.UUID == uuid.Nil {
		q.UUID = uuid.New()
	}
	if q.Status == "" {
		q.Status = QueueStatusPending
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (q *BillingQueue) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	q.UpdatedAt = &now
	return nil
}

// BillingQueueFilter represents filter criteria for billing queues
type BillingQueueFilter struct {
	ID                *uint        `json:"id,omitempty"`
	UUID              *uuid.UUID   `json:"uuid,omitempty"`
	BillingCampaignID *uint        `json:"billing_campaign_id,omitempty"`
	TenantID          *uint        `json:"tenant_id,omitempty"`
	Status            *QueueStatus `json:"status,omitempty"`
}
