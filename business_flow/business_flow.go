// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"

	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/repository"
	"github.com/zapflow/billing-engine/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for request tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// QueuePublisher hands queue work items to the broker. Implemented by the
// queue package; declared here so flows need no broker dependency.
type QueuePublisher interface {
	PublishQueue(ctx context.Context, templateType models.TemplateType, queueUUID string) error
}

// getActiveTenant loads a tenant and rejects missing or inactive ones
func getActiveTenant(ctx context.Context, repo repository.TenantRepository, tenantID uint) (*models.Tenant, error) {
	tenant, err := repo.ByID(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "Failed to lookup tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError("TENANT_NOT_FOUND", "Tenant not found", ErrTenantNotFound)
	}
	if !utils.IsTrue(tenant.IsActive) {
		return nil, NewBusinessError("TENANT_INACTIVE", "Tenant is inactive", ErrTenantInactive)
	}
	return tenant, nil
}
