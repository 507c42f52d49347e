// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"github.com/zapflow/billing-engine/app/dto"
	"github.com/zapflow/billing-engine/app/middleware"
	businessflow "github.com/zapflow/billing-engine/business_flow"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// BillingCycleHandlerInterface defines the contract for cycle handlers
type BillingCycleHandlerInterface interface {
	CreateCycle(c fiber.Ctx) error
	CancelCycle(c fiber.Ctx) error
	GetCycle(c fiber.Ctx) error
}

// BillingCycleHandler handles billing cycle HTTP requests
type BillingCycleHandler struct {
	cycleFlow businessflow.BillingCycleFlow
	validator *validator.Validate
}

// NewBillingCycleHandler creates a new cycle handler
func NewBillingCycleHandler(cycleFlow businessflow.BillingCycleFlow) *BillingCycleHandler {
	return &BillingCycleHandler{
		cycleFlow: cycleFlow,
		validator: validator.New(),
	}
}

func (h *BillingCycleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *BillingCycleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCycle registers or reactivates a billing cycle for a debtor
// @Summary Register Billing Cycle
// @Description Register a debt and schedule its reminder messages
// @Tags Cycles
// @Accept json
// @Produce json
// @Param request body dto.CreateBillingCycleRequest true "Cycle data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateBillingCycleResponse} "Cycle registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/cycles [post]
func (h *BillingCycleHandler) CreateCycle(c fiber.Ctx) error {
	var req dto.CreateBillingCycleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.TenantID = middleware.TenantID(c)

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.cycleFlow.CreateCycle(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsTenantNotFound(err) || businessflow.IsTenantInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Tenant cannot register cycles", "TENANT_REJECTED", nil)
		}
		if businessflow.IsInvalidContactPhone(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid contact phone", "INVALID_CONTACT_PHONE", nil)
		}
		if businessflow.IsInvalidDueDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid due date", "INVALID_DUE_DATE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to register cycle", "CYCLE_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Cycle registered", result)
}

// CancelCycle stops a cycle and its scheduled messages
// @Summary Cancel Billing Cycle
// @Description Stop a cycle because the debt was cancelled or paid
// @Tags Cycles
// @Accept json
// @Produce json
// @Param external_id path string true "External billing ID"
// @Param request body dto.CancelBillingCycleRequest true "Cancellation reason"
// @Success 200 {object} dto.APIResponse{data=dto.CancelBillingCycleResponse} "Cycle stopped"
// @Failure 404 {object} dto.APIResponse "Cycle not found"
// @Router /api/v1/cycles/{external_id}/cancel [post]
func (h *BillingCycleHandler) CancelCycle(c fiber.Ctx) error {
	var req dto.CancelBillingCycleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.TenantID = middleware.TenantID(c)
	req.ExternalBillingID = c.Params("external_id")

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.cycleFlow.CancelCycle(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsCycleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Cycle not found", "CYCLE_NOT_FOUND", nil)
		}
		if businessflow.IsInvalidCycleReason(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid cancellation reason", "INVALID_CYCLE_REASON", nil)
		}
		if businessflow.IsTenantNotFound(err) || businessflow.IsTenantInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Tenant cannot cancel cycles", "TENANT_REJECTED", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to cancel cycle", "CYCLE_CANCELLATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Cycle stopped", result)
}

// GetCycle returns one cycle with its message counters
// @Summary Get Billing Cycle
// @Description Retrieve a cycle and its message counters
// @Tags Cycles
// @Produce json
// @Param external_id path string true "External billing ID"
// @Success 200 {object} dto.APIResponse{data=dto.GetBillingCycleResponse} "Cycle found"
// @Failure 404 {object} dto.APIResponse "Cycle not found"
// @Router /api/v1/cycles/{external_id} [get]
func (h *BillingCycleHandler) GetCycle(c fiber.Ctx) error {
	req := dto.GetBillingCycleRequest{
		TenantID:          middleware.TenantID(c),
		ExternalBillingID: c.Params("external_id"),
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	ctx, cancel := createRequestContext(c)
	defer cancel()

	result, err := h.cycleFlow.GetCycle(ctx, &req)
	if err != nil {
		if businessflow.IsCycleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Cycle not found", "CYCLE_NOT_FOUND", nil)
		}
		if businessflow.IsTenantNotFound(err) || businessflow.IsTenantInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Tenant cannot read cycles", "TENANT_REJECTED", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load cycle", "CYCLE_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Cycle retrieved", result)
}
