// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zapflow/billing-engine/app/dto"
	"github.com/zapflow/billing-engine/app/services"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/repository"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// BillingCampaignFlow handles the campaign orchestration business logic
type BillingCampaignFlow interface {
	CreateBillingCampaign(ctx context.Context, req *dto.CreateBillingCampaignRequest, metadata *ClientMetadata) (*dto.CreateBillingCampaignResponse, error)
	GetBillingCampaign(ctx context.Context, req *dto.GetBillingCampaignRequest) (*dto.GetBillingCampaignResponse, error)
}

// BillingCampaignFlowImpl implements the campaign orchestration flow
type BillingCampaignFlowImpl struct {
	tenantRepo          repository.TenantRepository
	instanceRepo        repository.WhatsAppInstanceRepository
	templateRepo        repository.BillingTemplateRepository
	campaignRepo        repository.CampaignRepository
	billingCampaignRepo repository.BillingCampaignRepository
	queueRepo           repository.BillingQueueRepository
	contactRepo         repository.BillingContactRepository
	engine              services.TemplateEngine
	publisher           QueuePublisher
	countryCode         string
	db                  *gorm.DB
}

// NewBillingCampaignFlow creates a new campaign orchestration flow instance
func NewBillingCampaignFlow(
	tenantRepo repository.TenantRepository,
	instanceRepo repository.WhatsAppInstanceRepository,
	templateRepo repository.BillingTemplateRepository,
	campaignRepo repository.CampaignRepository,
	billingCampaignRepo repository.BillingCampaignRepository,
	queueRepo repository.BillingQueueRepository,
	contactRepo repository.BillingContactRepository,
	engine services.TemplateEngine,
	publisher QueuePublisher,
	countryCode string,
	db *gorm.DB,
) BillingCampaignFlow {
	return &BillingCampaignFlowImpl{
		tenantRepo:          tenantRepo,
		instanceRepo:        instanceRepo,
		templateRepo:        templateRepo,
		campaignRepo:        campaignRepo,
		billingCampaignRepo: billingCampaignRepo,
		queueRepo:           queueRepo,
		contactRepo:         contactRepo,
		engine:              engine,
		publisher:           publisher,
		countryCode:         countryCode,
		db:                  db,
	}
}

// preparedContact is a contact payload that passed validation and rendering
type preparedContact struct {
	name           string
	phone          string
	rendered       string
	variationOrder int
	billingData    models.BillingData
}

// CreateBillingCampaign handles the complete campaign submission process
func (s *BillingCampaignFlowImpl) CreateBillingCampaign(ctx context.Context, req *dto.CreateBillingCampaignRequest, metadata *ClientMetadata) (*dto.CreateBillingCampaignResponse, error) {
	templateType := models.TemplateType(req.Type)
	if !templateType.Valid() {
		return nil, NewBusinessError("INVALID_TEMPLATE_TYPE", "Invalid template type", ErrInvalidTemplateType)
	}
	if len(req.Contacts) == 0 {
		return nil, NewBusinessError("CONTACTS_REQUIRED", "At least one contact is required", ErrContactsRequired)
	}

	tenant, err := getActiveTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, err
	}

	if req.ExternalID != nil && *req.ExternalID != "" {
		existing, err := s.billingCampaignRepo.ByTenantAndExternalID(ctx, tenant.ID, *req.ExternalID)
		if err != nil {
			return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to check external id", err)
		}
		if existing != nil {
			return nil, NewBusinessError("DUPLICATE_EXTERNAL_ID", "External id already used for this tenant", ErrDuplicateExternalID)
		}
	}

	template, err := s.templateRepo.ActiveByTenantAndType(ctx, tenant.ID, templateType)
	if err != nil {
		return nil, NewBusinessError("TEMPLATE_LOOKUP_FAILED", "Failed to lookup template", err)
	}
	if template == nil {
		return nil, NewBusinessError("TEMPLATE_NOT_FOUND", "No active template for this type", ErrTemplateNotFound)
	}
	if len(template.ActiveVariations()) == 0 {
		return nil, NewBusinessError("TEMPLATE_NO_VARIATIONS", "Template has no active variations", ErrTemplateNoVariations)
	}

	var instanceID *uint
	if req.InstanceID != nil && *req.InstanceID != "" {
		instance, err := s.getTenantInstance(ctx, tenant.ID, *req.InstanceID)
		if err != nil {
			return nil, err
		}
		instanceID = &instance.ID
	}

	prepared, err := s.prepareContacts(tenant, template, req.Contacts)
	if err != nil {
		return nil, err
	}

	// Persist campaign, queue and contacts atomically
	var billingCampaign *models.BillingCampaign
	var queue *models.BillingQueue

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		campaign := &models.Campaign{
			TenantID:   tenant.ID,
			InstanceID: instanceID,
		}
		if err := s.campaignRepo.Save(txCtx, campaign); err != nil {
			return err
		}

		billingCampaign = &models.BillingCampaign{
			CampaignID: campaign.ID,
			TenantID:   tenant.ID,
			Type:       templateType,
			ExternalID: req.ExternalID,
			TemplateID: template.ID,
		}
		if err := s.billingCampaignRepo.Save(txCtx, billingCampaign); err != nil {
			return err
		}

		queue = &models.BillingQueue{
			BillingCampaignID: billingCampaign.ID,
			TenantID:          tenant.ID,
			Status:            models.QueueStatusPending,
			TotalContacts:     len(prepared),
		}
		if err := s.queueRepo.Save(txCtx, queue); err != nil {
			return err
		}

		contacts := make([]*models.BillingContact, 0, len(prepared))
		for _, p := range prepared {
			contacts = append(contacts, &models.BillingContact{
				TenantID:          tenant.ID,
				BillingCampaignID: &billingCampaign.ID,
				TemplateID:        &template.ID,
				VariationOrder:    p.variationOrder,
				ContactName:       p.name,
				Phone:             p.phone,
				RenderedMessage:   p.rendered,
				Status:            models.ContactStatusPending,
				BillingData:       p.billingData,
			})
		}

		return s.contactRepo.SaveBatch(txCtx, contacts)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	// A failed publish leaves the queue pending; the periodic sweeper promotes
	// pending queues, so the error is not surfaced to the caller.
	_ = s.publisher.PublishQueue(ctx, templateType, queue.UUID.String())

	resp := &dto.CreateBillingCampaignResponse{
		Message:       "Billing campaign created successfully",
		CampaignID:    billingCampaign.UUID.String(),
		QueueID:       queue.UUID.String(),
		TotalContacts: len(prepared),
		CreatedAt:     billingCampaign.CreatedAt.Format(time.RFC3339),
	}

	return resp, nil
}

// GetBillingCampaign returns a campaign with its queue progress
func (s *BillingCampaignFlowImpl) GetBillingCampaign(ctx context.Context, req *dto.GetBillingCampaignRequest) (*dto.GetBillingCampaignResponse, error) {
	campaign, err := s.billingCampaignRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil || campaign.TenantID != req.TenantID {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Billing campaign not found", ErrBillingCampaignNotFound)
	}

	resp := &dto.GetBillingCampaignResponse{
		UUID:       campaign.UUID.String(),
		Type:       campaign.Type.String(),
		ExternalID: campaign.ExternalID,
		CreatedAt:  campaign.CreatedAt.Format(time.RFC3339),
	}

	queue, err := s.queueRepo.ByBillingCampaignID(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("QUEUE_LOOKUP_FAILED", "Failed to lookup queue", err)
	}
	if queue != nil {
		resp.Queue = toBillingQueueDTO(queue)
	}

	return resp, nil
}

// prepareContacts validates, enriches and renders every contact payload.
// The whole submission is rejected on the first violation.
func (s *BillingCampaignFlowImpl) prepareContacts(tenant *models.Tenant, template *models.BillingTemplate, contacts []dto.CampaignContactDTO) ([]preparedContact, error) {
	loc := tenant.Location()
	now := utils.UTCNow()
	prepared := make([]preparedContact, 0, len(contacts))

	for i, c := range contacts {
		phone, err := services.NormalizePhone(c.Telefone, s.countryCode)
		if err != nil {
			return nil, NewBusinessErrorf("INVALID_CONTACT_PHONE", "Invalid phone for contact %q", ErrInvalidContactPhone, c.Nome)
		}

		due, err := time.ParseInLocation("2006-01-02", c.DataVencimento, loc)
		if err != nil {
			return nil, NewBusinessErrorf("INVALID_DUE_DATE", "Invalid due date for contact %q", ErrInvalidDueDate, c.Nome)
		}

		variation := template.PickVariation(i)
		if variation == nil {
			return nil, NewBusinessError("TEMPLATE_NO_VARIATIONS", "Template has no active variations", ErrTemplateNoVariations)
		}

		vars := buildContactVariables(c.Nome, c.Valor, due, now, loc, c.LinkPagamento, c.CodigoPix, c.Observacoes)

		rendered, err := s.engine.Render(variation.Body, vars)
		if err != nil {
			return nil, NewBusinessErrorf("TEMPLATE_RENDER_FAILED", "Failed to render message for contact %q", err, c.Nome)
		}
		if len(rendered) > models.MaxRenderedMessageLength {
			return nil, NewBusinessErrorf("MESSAGE_TOO_LONG", "Rendered message too long for contact %q", ErrRenderedMessageTooLong, c.Nome)
		}

		data := models.BillingData{
			"valor":           c.Valor,
			"data_vencimento": c.DataVencimento,
		}
		if c.LinkPagamento != "" {
			data["link_pagamento"] = c.LinkPagamento
		}
		if c.CodigoPix != "" {
			data["codigo_pix"] = c.CodigoPix
		}
		if c.Observacoes != "" {
			data["observacoes"] = c.Observacoes
		}

		prepared = append(prepared, preparedContact{
			name:           c.Nome,
			phone:          phone,
			rendered:       rendered,
			variationOrder: variation.Order,
			billingData:    data,
		})
	}

	return prepared, nil
}

// getTenantInstance resolves an instance UUID and checks tenant ownership
func (s *BillingCampaignFlowImpl) getTenantInstance(ctx context.Context, tenantID uint, instanceUUID string) (*models.WhatsAppInstance, error) {
	parsed, err := uuid.Parse(instanceUUID)
	if err != nil {
		return nil, NewBusinessError("INSTANCE_NOT_FOUND", "WhatsApp instance not found", ErrInstanceNotFound)
	}

	filter := models.WhatsAppInstanceFilter{UUID: &parsed, TenantID: &tenantID}
	instances, err := s.instanceRepo.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, NewBusinessError("INSTANCE_LOOKUP_FAILED", "Failed to lookup instance", err)
	}
	if len(instances) == 0 {
		return nil, NewBusinessError("INSTANCE_NOT_FOUND", "WhatsApp instance not found", ErrInstanceNotFound)
	}

	return instances[0], nil
}

// buildContactVariables assembles the closed variable set for one contact
func buildContactVariables(name string, value any, due, now time.Time, loc *time.Location, link, pix, notes string) map[string]any {
	vars := map[string]any{
		"nome_cliente":    name,
		"primeiro_nome":   firstName(name),
		"valor":           utils.FormatCurrencyBRL(value),
		"data_vencimento": utils.FormatDateBR(due),
		"dias_atraso":     utils.DaysOverdue(due, now, loc),
		"dias_vencimento": utils.DaysUntilDue(due, now, loc),
	}
	if link != "" {
		vars["link_pagamento"] = link
	}
	if pix != "" {
		vars["codigo_pix"] = pix
	}
	if notes != "" {
		vars["observacoes"] = notes
	}
	return vars
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}

func toBillingQueueDTO(queue *models.BillingQueue) *dto.BillingQueueDTO {
	out := &dto.BillingQueueDTO{
		UUID:              queue.UUID.String(),
		Status:            queue.Status.String(),
		TotalContacts:     queue.TotalContacts,
		ProcessedContacts: queue.ProcessedContacts,
		SentCount:         queue.SentCount,
		FailedCount:       queue.FailedCount,
		ProcessingBy:      queue.ProcessingBy,
	}
	if queue.LastHeartbeat != nil {
		out.LastHeartbeat = utils.ToPtr(queue.LastHeartbeat.Format(time.RFC3339))
	}
	if queue.CompletedAt != nil {
		out.CompletedAt = utils.ToPtr(queue.CompletedAt.Format(time.RFC3339))
	}
	return out
}
