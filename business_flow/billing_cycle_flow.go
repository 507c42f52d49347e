// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"context"
	"time"

	"github.com/zapflow/billing-engine/app/dto"
	"github.com/zapflow/billing-engine/app/services"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/repository"
	"github.com/zapflow/billing-engine/utils"
	"gorm.io/gorm"
)

// BillingCycleFlow handles the cycle manager business logic
type BillingCycleFlow interface {
	CreateCycle(ctx context.Context, req *dto.CreateBillingCycleRequest, metadata *ClientMetadata) (*dto.CreateBillingCycleResponse, error)
	CancelCycle(ctx context.Context, req *dto.CancelBillingCycleRequest, metadata *ClientMetadata) (*dto.CancelBillingCycleResponse, error)
	GetCycle(ctx context.Context, req *dto.GetBillingCycleRequest) (*dto.GetBillingCycleResponse, error)
	CheckAndComplete(ctx context.Context, cycleID uint) (bool, error)
}

// BillingCycleFlowImpl implements the cycle manager flow
type BillingCycleFlowImpl struct {
	tenantRepo   repository.TenantRepository
	templateRepo repository.BillingTemplateRepository
	cycleRepo    repository.BillingCycleRepository
	contactRepo  repository.BillingContactRepository
	hours        services.BusinessHoursOracle
	countryCode  string
	db           *gorm.DB
}

// NewBillingCycleFlow creates a new cycle manager flow instance
func NewBillingCycleFlow(
	tenantRepo repository.TenantRepository,
	templateRepo repository.BillingTemplateRepository,
	cycleRepo repository.BillingCycleRepository,
	contactRepo repository.BillingContactRepository,
	hours services.BusinessHoursOracle,
	countryCode string,
	db *gorm.DB,
) BillingCycleFlow {
	return &BillingCycleFlowImpl{
		tenantRepo:   tenantRepo,
		templateRepo: templateRepo,
		cycleRepo:    cycleRepo,
		contactRepo:  contactRepo,
		hours:        hours,
		countryCode:  countryCode,
		db:           db,
	}
}

// CreateCycle registers a new cycle or reactivates an existing one for the
// same external billing id, then schedules its messages.
func (s *BillingCycleFlowImpl) CreateCycle(ctx context.Context, req *dto.CreateBillingCycleRequest, metadata *ClientMetadata) (*dto.CreateBillingCycleResponse, error) {
	tenant, err := getActiveTenant(ctx, s.tenantRepo, req.TenantID)
	if err != nil {
		return nil, err
	}

	phone, err := services.NormalizePhone(req.ContactPhone, s.countryCode)
	if err != nil {
		return nil, NewBusinessError("INVALID_CONTACT_PHONE", "Invalid contact phone", ErrInvalidContactPhone)
	}

	dueDate, err := time.ParseInLocation("2006-01-02", req.DueDate, tenant.Location())
	if err != nil {
		return nil, NewBusinessError("INVALID_DUE_DATE", "Invalid due date", ErrInvalidDueDate)
	}

	notifyBefore := req.NotifyBeforeDue == nil || *req.NotifyBeforeDue
	notifyAfter := req.NotifyAfterDue == nil || *req.NotifyAfterDue

	var cycle *models.BillingCycle
	var reactivated bool

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		fresh := &models.BillingCycle{
			TenantID:          tenant.ID,
			ExternalBillingID: req.ExternalBillingID,
			ContactPhone:      phone,
			ContactName:       req.ContactName,
			DueDate:           dueDate,
			BillingData:       models.BillingData(req.BillingData),
			NotifyBeforeDue:   utils.ToPtr(notifyBefore),
			NotifyAfterDue:    utils.ToPtr(notifyAfter),
			Status:            models.CycleStatusActive,
		}

		// Insert first so concurrent submissions of the same billing race on
		// the unique (tenant, external billing id) pair instead of on a read.
		inserted, err := s.cycleRepo.CreateIfAbsent(txCtx, fresh)
		if err != nil {
			return err
		}

		if inserted {
			cycle = fresh
		} else {
			existing, err := s.cycleRepo.ByTenantAndExternalID(txCtx, tenant.ID, req.ExternalBillingID)
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrCycleNotFound
			}
			cycle, err = s.cycleRepo.ByIDLocked(txCtx, existing.ID)
			if err != nil {
				return err
			}
			if cycle == nil {
				return ErrCycleNotFound
			}
			if cycle.Status.CanReactivate() {
				cycle.Status = models.CycleStatusActive
				cycle.CancelledAt = nil
				cycle.CompletedAt = nil
				if err := s.cycleRepo.Update(txCtx, cycle); err != nil {
					return err
				}
				reactivated = true
			}
		}

		if cycle.Status != models.CycleStatusActive {
			return nil
		}

		return s.scheduleCycleMessages(txCtx, tenant, cycle)
	})
	if err != nil {
		return nil, NewBusinessError("CYCLE_CREATION_FAILED", "Cycle creation failed", err)
	}

	resp := &dto.CreateBillingCycleResponse{
		Message:           "Billing cycle registered successfully",
		UUID:              cycle.UUID.String(),
		ExternalBillingID: cycle.ExternalBillingID,
		Status:            cycle.Status.String(),
		DueDate:           cycle.DueDate.Format("2006-01-02"),
		TotalMessages:     cycle.TotalMessages,
		Reactivated:       reactivated,
		CreatedAt:         cycle.CreatedAt.Format(time.RFC3339),
	}

	return resp, nil
}

// scheduleCycleMessages computes and persists the message plan for a cycle.
// Idempotent: a cycle that already has scheduled contacts keeps them, so
// reactivation never double-schedules.
func (s *BillingCycleFlowImpl) scheduleCycleMessages(ctx context.Context, tenant *models.Tenant, cycle *models.BillingCycle) error {
	existing, err := s.contactRepo.Count(ctx, models.BillingContactFilter{BillingCycleID: &cycle.ID})
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	cfg, err := s.tenantRepo.BillingConfig(ctx, tenant.ID)
	if err != nil {
		return err
	}

	beforeDays := []int64{5, 3, 1}
	afterDays := []int64{1, 3, 5}
	if cfg != nil {
		if len(cfg.NotifyBeforeDays) > 0 {
			beforeDays = cfg.NotifyBeforeDays
		}
		if len(cfg.NotifyAfterDays) > 0 {
			afterDays = cfg.NotifyAfterDays
		}
	}

	rules, loc, err := s.hours.SendDayRules(ctx, tenant.ID)
	if err != nil {
		return err
	}

	type planEntry struct {
		templateType models.TemplateType
		targetDate   time.Time
		direction    utils.ShiftDirection
	}

	due := time.Date(cycle.DueDate.Year(), cycle.DueDate.Month(), cycle.DueDate.Day(), 0, 0, 0, 0, loc)
	plan := make([]planEntry, 0, utils.MaxCycleMessages)

	if utils.IsTrue(cycle.NotifyBeforeDue) {
		for _, n := range beforeDays {
			plan = append(plan, planEntry{
				templateType: models.TemplateTypeUpcoming,
				targetDate:   due.AddDate(0, 0, -int(n)),
				direction:    utils.ShiftBackward,
			})
		}
	}
	if utils.IsTrue(cycle.NotifyAfterDue) {
		for _, n := range afterDays {
			plan = append(plan, planEntry{
				templateType: models.TemplateTypeOverdue,
				targetDate:   due.AddDate(0, 0, int(n)),
				direction:    utils.ShiftForward,
			})
		}
	}
	if len(plan) > utils.MaxCycleMessages {
		plan = plan[:utils.MaxCycleMessages]
	}

	templates := map[models.TemplateType]*models.BillingTemplate{}
	contacts := make([]*models.BillingContact, 0, len(plan))

	for i, entry := range plan {
		template, ok := templates[entry.templateType]
		if !ok {
			template, err = s.templateRepo.ActiveByTenantAndType(ctx, tenant.ID, entry.templateType)
			if err != nil {
				return err
			}
			templates[entry.templateType] = template
		}
		// A missing template skips the entry rather than failing the cycle.
		if template == nil {
			continue
		}
		variation := template.PickVariation(i)
		if variation == nil {
			continue
		}

		sendDate, _ := utils.ShiftToBusinessDay(entry.targetDate, entry.direction, rules)
		scheduledAt := time.Date(sendDate.Year(), sendDate.Month(), sendDate.Day(),
			utils.CycleSendHour, 0, 0, 0, loc).UTC()

		contacts = append(contacts, &models.BillingContact{
			TenantID:       tenant.ID,
			BillingCycleID: &cycle.ID,
			TemplateID:     &template.ID,
			VariationOrder: variation.Order,
			ContactName:    cycle.ContactName,
			Phone:          cycle.ContactPhone,
			Status:         models.ContactStatusPending,
			ScheduledAt:    &scheduledAt,
			BillingData:    cycle.BillingData,
		})
	}

	if err := s.contactRepo.SaveBatch(ctx, contacts); err != nil {
		return err
	}

	cycle.TotalMessages = len(contacts)
	return s.cycleRepo.Update(ctx, cycle)
}

// CancelCycle stops a cycle; reason "paid" marks the debt as settled.
// Contacts already sent, delivered or read are preserved.
func (s *BillingCycleFlowImpl) CancelCycle(ctx context.Context, req *dto.CancelBillingCycleRequest, metadata *ClientMetadata) (*dto.CancelBillingCycleResponse, error) {
	reason := models.CycleStatus(req.Reason)
	if reason != models.CycleStatusCancelled && reason != models.CycleStatusPaid {
		return nil, NewBusinessError("INVALID_CYCLE_REASON", "Invalid cancellation reason", ErrInvalidCycleReason)
	}

	var cycle *models.BillingCycle
	var cancelled int64

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		found, err := s.cycleRepo.ByTenantAndExternalID(txCtx, req.TenantID, req.ExternalBillingID)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrCycleNotFound
		}

		cycle, err = s.cycleRepo.ByIDLocked(txCtx, found.ID)
		if err != nil {
			return err
		}
		if cycle == nil {
			return ErrCycleNotFound
		}
		if cycle.Status.IsTerminal() {
			return nil
		}

		cycle.Status = reason
		now := utils.UTCNow()
		cycle.CancelledAt = &now
		if err := s.cycleRepo.Update(txCtx, cycle); err != nil {
			return err
		}

		cancelled, err = s.contactRepo.CancelNonTerminalByCycle(txCtx, cycle.ID)
		return err
	})
	if err != nil {
		if IsCycleNotFound(err) {
			return nil, NewBusinessError("CYCLE_NOT_FOUND", "Billing cycle not found", ErrCycleNotFound)
		}
		return nil, NewBusinessError("CYCLE_CANCELLATION_FAILED", "Cycle cancellation failed", err)
	}

	resp := &dto.CancelBillingCycleResponse{
		Message:           "Billing cycle stopped",
		UUID:              cycle.UUID.String(),
		ExternalBillingID: cycle.ExternalBillingID,
		Status:            cycle.Status.String(),
		CancelledContacts: cancelled,
	}

	return resp, nil
}

// GetCycle returns a cycle with its message counters
func (s *BillingCycleFlowImpl) GetCycle(ctx context.Context, req *dto.GetBillingCycleRequest) (*dto.GetBillingCycleResponse, error) {
	cycle, err := s.cycleRepo.ByTenantAndExternalID(ctx, req.TenantID, req.ExternalBillingID)
	if err != nil {
		return nil, NewBusinessError("CYCLE_LOOKUP_FAILED", "Failed to lookup cycle", err)
	}
	if cycle == nil {
		return nil, NewBusinessError("CYCLE_NOT_FOUND", "Billing cycle not found", ErrCycleNotFound)
	}

	resp := &dto.GetBillingCycleResponse{
		UUID:              cycle.UUID.String(),
		ExternalBillingID: cycle.ExternalBillingID,
		ContactName:       cycle.ContactName,
		ContactPhone:      cycle.ContactPhone,
		DueDate:           cycle.DueDate.Format("2006-01-02"),
		Status:            cycle.Status.String(),
		TotalMessages:     cycle.TotalMessages,
		SentMessages:      cycle.SentMessages,
		FailedMessages:    cycle.FailedMessages,
		CreatedAt:         cycle.CreatedAt.Format(time.RFC3339),
	}
	if cycle.CancelledAt != nil {
		resp.CancelledAt = utils.ToPtr(cycle.CancelledAt.Format(time.RFC3339))
	}
	if cycle.CompletedAt != nil {
		resp.CompletedAt = utils.ToPtr(cycle.CompletedAt.Format(time.RFC3339))
	}

	return resp, nil
}

// CheckAndComplete transitions an active cycle to completed once every
// contact reached a final state. Returns whether the transition happened.
func (s *BillingCycleFlowImpl) CheckAndComplete(ctx context.Context, cycleID uint) (bool, error) {
	var completed bool

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		cycle, err := s.cycleRepo.ByIDLocked(txCtx, cycleID)
		if err != nil {
			return err
		}
		if cycle == nil || cycle.Status != models.CycleStatusActive {
			return nil
		}

		counts, err := s.contactRepo.CountByStatusForCycle(txCtx, cycleID)
		if err != nil {
			return err
		}

		open := counts[models.ContactStatusPending] +
			counts[models.ContactStatusSending] +
			counts[models.ContactStatusPendingRetry]
		if open > 0 {
			return nil
		}

		var total int64
		for _, n := range counts {
			total += n
		}
		if total == 0 {
			return nil
		}

		cycle.Status = models.CycleStatusCompleted
		now := utils.UTCNow()
		cycle.CompletedAt = &now
		if err := s.cycleRepo.Update(txCtx, cycle); err != nil {
			return err
		}

		completed = true
		return nil
	})

	return completed, err
}

// CycleContactVariables assembles the substitution set for one cycle message.
// Day counts are computed from the given instant so a message dispatched late
// still reports the real overdue age.
func CycleContactVariables(cycle *models.BillingCycle, now time.Time, loc *time.Location) map[string]any {
	data := cycle.BillingData
	return buildContactVariables(
		cycle.ContactName,
		data["valor"],
		cycle.DueDate,
		now,
		loc,
		data.GetString("link_pagamento"),
		data.GetString("codigo_pix"),
		data.GetString("observacoes"),
	)
}
