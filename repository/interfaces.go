// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/zapflow/billing-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TenantRepository defines operations for tenants and their billing configuration
type TenantRepository interface {
	Repository[models.Tenant, models.TenantFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Tenant, error)
	BillingConfig(ctx context.Context, tenantID uint) (*models.BillingConfig, error)
}

// WhatsAppInstanceRepository defines operations for gateway instances
type WhatsAppInstanceRepository interface {
	Repository[models.WhatsAppInstance, models.WhatsAppInstanceFilter]
	ActiveForTenant(ctx context.Context, tenantID uint) (*models.WhatsAppInstance, error)
}

// BillingTemplateRepository defines operations for billing templates
type BillingTemplateRepository interface {
	Repository[models.BillingTemplate, models.BillingTemplateFilter]
	ActiveByTenantAndType(ctx context.Context, tenantID uint, templateType models.TemplateType) (*models.BillingTemplate, error)
	ByIDWithVariations(ctx context.Context, id uint) (*models.BillingTemplate, error)
}

// CampaignRepository defines operations for base campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
}

// BillingCampaignRepository defines operations for billing campaigns
type BillingCampaignRepository interface {
	Repository[models.BillingCampaign, models.BillingCampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.BillingCampaign, error)
	ByTenantAndExternalID(ctx context.Context, tenantID uint, externalID string) (*models.BillingCampaign, error)
}

// BillingQueueRepository defines operations for billing queues.
// AcquireForProcessing and ReleaseProcessing implement the worker ownership
// handshake: at most one worker holds a queue at a time.
type BillingQueueRepository interface {
	Repository[models.BillingQueue, models.BillingQueueFilter]
	ByUUID(ctx context.Context, uuid string) (*models.BillingQueue, error)
	ByBillingCampaignID(ctx context.Context, billingCampaignID uint) (*models.BillingQueue, error)
	AcquireForProcessing(ctx context.Context, queueID uint, workerID string) (bool, error)
	ReleaseProcessing(ctx context.Context, queueID uint, workerID string, status models.QueueStatus) error
	Heartbeat(ctx context.Context, queueID uint, workerID string) error
	UpdateCounters(ctx context.Context, queueID uint, processedDelta, sentDelta, failedDelta int) error
	SetStatus(ctx context.Context, queueID uint, status models.QueueStatus) error
	ListPending(ctx context.Context, limit int) ([]*models.BillingQueue, error)
	ListStale(ctx context.Context, heartbeatBefore time.Time, limit int) ([]*models.BillingQueue, error)
	RequeueStale(ctx context.Context, queueID uint, heartbeatBefore time.Time) (bool, error)
}

// BillingContactRepository defines operations for billing contacts.
// ClaimForSending performs the per-contact optimistic lock.
type BillingContactRepository interface {
	Repository[models.BillingContact, models.BillingContactFilter]
	ByUUID(ctx context.Context, uuid string) (*models.BillingContact, error)
	ClaimForSending(ctx context.Context, contactID uint, version int) (bool, error)
	MarkSent(ctx context.Context, contactID uint, gatewayMessageID *string, sentAt time.Time) error
	MarkDispatchResult(ctx context.Context, contactID uint, status models.ContactStatus, lastError string) error
	SetRenderedMessage(ctx context.Context, contactID uint, body string) error
	ListPendingByCampaign(ctx context.Context, billingCampaignID uint, limit int) ([]*models.BillingContact, error)
	ListDueScheduled(ctx context.Context, before time.Time, limit int) ([]*models.BillingContact, error)
	CancelNonTerminalByCycle(ctx context.Context, cycleID uint) (int64, error)
	CountByStatusForCycle(ctx context.Context, cycleID uint) (map[models.ContactStatus]int64, error)
}

// BillingCycleRepository defines operations for billing cycles
type BillingCycleRepository interface {
	Repository[models.BillingCycle, models.BillingCycleFilter]
	ByUUID(ctx context.Context, uuid string) (*models.BillingCycle, error)
	CreateIfAbsent(ctx context.Context, cycle *models.BillingCycle) (bool, error)
	ByTenantAndExternalID(ctx context.Context, tenantID uint, externalBillingID string) (*models.BillingCycle, error)
	ByIDLocked(ctx context.Context, id uint) (*models.BillingCycle, error)
	Update(ctx context.Context, cycle *models.BillingCycle) error
	UpdateMessageCounters(ctx context.Context, cycleID uint, sentDelta, failedDelta int) error
}

// BusinessHoursRepository defines operations for business hours records
type BusinessHoursRepository interface {
	Repository[models.BusinessHours, models.BusinessHoursFilter]
	Effective(ctx context.Context, tenantID uint, department *string) (*models.BusinessHours, error)
}
