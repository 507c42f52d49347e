// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/zapflow/billing-engine/app/dto"
	"github.com/zapflow/billing-engine/repository"
	"github.com/zapflow/billing-engine/utils"
)

// TenantIDLocal is the Fiber locals key the resolved tenant ID is stored under.
const TenantIDLocal = "tenant_id"

// TenantMiddleware resolves the calling tenant from the X-Tenant-ID header.
// The engine sits behind the platform layer, which authenticates callers; the
// header carries the tenant UUID the request acts on.
type TenantMiddleware struct {
	tenantRepo repository.TenantRepository
}

// NewTenantMiddleware creates a new tenant resolution middleware
func NewTenantMiddleware(tenantRepo repository.TenantRepository) *TenantMiddleware {
	return &TenantMiddleware{tenantRepo: tenantRepo}
}

// Resolve validates the tenant header and stores the tenant ID in locals.
func (m *TenantMiddleware) Resolve() fiber.Handler {
	return func(c fiber.Ctx) error {
		rawTenant := c.Get("X-Tenant-ID")
		if rawTenant == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "X-Tenant-ID header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_TENANT_HEADER",
				},
			})
		}

		tenant, err := m.tenantRepo.ByUUID(c.Context(), rawTenant)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid tenant identifier",
				Error: dto.ErrorDetail{
					Code: "INVALID_TENANT_ID",
				},
			})
		}
		if tenant == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Tenant not found",
				Error: dto.ErrorDetail{
					Code: "TENANT_NOT_FOUND",
				},
			})
		}
		if !utils.IsTrue(tenant.IsActive) {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Tenant is inactive",
				Error: dto.ErrorDetail{
					Code: "TENANT_INACTIVE",
				},
			})
		}

		c.Locals(TenantIDLocal, tenant.ID)
		return c.Next()
	}
}

// TenantID reads the resolved tenant ID from locals, zero when absent.
func TenantID(c fiber.Ctx) uint {
	if id, ok := c.Locals(TenantIDLocal).(uint); ok {
		return id
	}
	return 0
}
