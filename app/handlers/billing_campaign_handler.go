// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"github.com/zapflow/billing-engine/app/dto"
	"github.com/zapflow/billing-engine/app/middleware"
	businessflow "github.com/zapflow/billing-engine/business_flow"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// BillingCampaignHandlerInterface defines the contract for campaign handlers
type BillingCampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
}

// BillingCampaignHandler handles campaign submission HTTP requests
type BillingCampaignHandler struct {
	campaignFlow businessflow.BillingCampaignFlow
	validator    *validator.Validate
}

// NewBillingCampaignHandler creates a new campaign handler
func NewBillingCampaignHandler(campaignFlow businessflow.BillingCampaignFlow) *BillingCampaignHandler {
	return &BillingCampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *BillingCampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BillingCampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCampaign handles a bulk campaign submission for one template type
// @Summary Submit Billing Campaign
// @Description Submit a batch of contacts for one template type
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param type path string true "Template type" Enums(overdue, upcoming, notification)
// @Param request body dto.CreateBillingCampaignRequest true "Campaign contacts"
// @Success 201 {object} dto.APIResponse{data=dto.CreateBillingCampaignResponse} "Campaign accepted"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Duplicate external ID"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/campaigns/{type} [post]
func (h *BillingCampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateBillingCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.TenantID = middleware.TenantID(c)
	req.Type = c.Params("type")

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.campaignFlow.CreateBillingCampaign(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidTemplateType(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown template type", "INVALID_TEMPLATE_TYPE", nil)
		}
		if businessflow.IsDuplicateExternalID(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "A campaign with this external ID already exists", "DUPLICATE_EXTERNAL_ID", nil)
		}
		if businessflow.IsTenantNotFound(err) || businessflow.IsTenantInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Tenant cannot submit campaigns", "TENANT_REJECTED", nil)
		}
		if businessflow.IsTemplateNotFound(err) || businessflow.IsTemplateNoVariations(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "No active template for this type", "TEMPLATE_NOT_FOUND", nil)
		}
		if businessflow.IsInstanceNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "WhatsApp instance not found", "INSTANCE_NOT_FOUND", nil)
		}
		if businessflow.IsInvalidContactPhone(err) || businessflow.IsInvalidDueDate(err) ||
			businessflow.IsRenderedMessageTooLong(err) || businessflow.IsContactsRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid contact payload", "INVALID_CONTACT", err.Error())
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", "CAMPAIGN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign accepted", result)
}

// GetCampaign returns one campaign with its queue progress
// @Summary Get Billing Campaign
// @Description Retrieve a campaign and its queue counters
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetBillingCampaignResponse} "Campaign found"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id} [get]
func (h *BillingCampaignHandler) GetCampaign(c fiber.Ctx) error {
	req := dto.GetBillingCampaignRequest{
		TenantID: middleware.TenantID(c),
		UUID:     c.Params("id"),
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.campaignFlow.GetBillingCampaign(ctx, &req)
	if err != nil {
		if businessflow.IsBillingCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		if businessflow.IsTenantNotFound(err) || businessflow.IsTenantInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Tenant cannot read campaigns", "TENANT_REJECTED", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load campaign", "CAMPAIGN_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved", result)
}
