// Package scheduler runs the periodic dispatcher for cycle-scheduled billing
// messages. Due contacts are claimed inside a transaction with row locks and
// sent outside it, so overlapping ticks and multiple replicas never dispatch
// the same contact twice.
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	businessflow "github.com/zapflow/billing-engine/business_flow"

	"github.com/zapflow/billing-engine/app/services"
	"github.com/zapflow/billing-engine/config"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/repository"
	"github.com/zapflow/billing-engine/utils"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

func initSchedulerLogger() *log.Logger {
	paths := []string{
		filepath.Join("data", "cycle_scheduler.log"),
		filepath.Join("/data", "cycle_scheduler.log"),
	}
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			continue
		}
		rotator := &lumberjack.Logger{
			Filename:   p,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		return log.New(io.MultiWriter(os.Stdout, rotator), "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}
	return log.New(os.Stdout, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// CycleScheduler dispatches cycle contacts whose scheduled time has passed.
type CycleScheduler struct {
	cfg          config.SchedulerConfig
	db           *gorm.DB
	contactRepo  repository.BillingContactRepository
	cycleRepo    repository.BillingCycleRepository
	templateRepo repository.BillingTemplateRepository
	tenantRepo   repository.TenantRepository
	instanceRepo repository.WhatsAppInstanceRepository
	cycleFlow    businessflow.BillingCycleFlow
	engine       services.TemplateEngine
	hours        services.BusinessHoursOracle
	gateway      services.GatewayClient
	logger       *log.Logger
}

// NewCycleScheduler creates the scheduler over the given repositories and
// collaborators.
func NewCycleScheduler(
	cfg config.SchedulerConfig,
	db *gorm.DB,
	contactRepo repository.BillingContactRepository,
	cycleRepo repository.BillingCycleRepository,
	templateRepo repository.BillingTemplateRepository,
	tenantRepo repository.TenantRepository,
	instanceRepo repository.WhatsAppInstanceRepository,
	cycleFlow businessflow.BillingCycleFlow,
	engine services.TemplateEngine,
	hours services.BusinessHoursOracle,
	gateway services.GatewayClient,
) *CycleScheduler {
	return &CycleScheduler{
		cfg:          cfg,
		db:           db,
		contactRepo:  contactRepo,
		cycleRepo:    cycleRepo,
		templateRepo: templateRepo,
		tenantRepo:   tenantRepo,
		instanceRepo: instanceRepo,
		cycleFlow:    cycleFlow,
		engine:       engine,
		hours:        hours,
		gateway:      gateway,
		logger:       initSchedulerLogger(),
	}
}

// Start launches the scheduling loop. The first pass runs immediately; the
// returned function stops the loop.
func (s *CycleScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		s.logger.Printf("scheduler: started, interval=%s", interval)
		s.runOnce(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Printf("scheduler: stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

// dispatchItem is one claimed contact ready to send.
type dispatchItem struct {
	contactID uint
	cycleID   uint
	phone     string
	body      string
	instance  *models.WhatsAppInstance
	interval  time.Duration
}

// tenantState caches per-tenant lookups within one pass.
type tenantState struct {
	tenant     *models.Tenant
	billingCfg *models.BillingConfig
	instance   *models.WhatsAppInstance
	open       bool
}

func (s *CycleScheduler) runOnce(ctx context.Context) {
	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var items []dispatchItem
	affected := map[uint]struct{}{}

	err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		due, err := s.contactRepo.ListDueScheduled(txCtx, utils.UTCNow(), batchSize)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		cycles := map[uint]*models.BillingCycle{}
		tenants := map[uint]*tenantState{}
		now := time.Now()

		for _, contact := range due {
			cycleID := *contact.BillingCycleID

			cycle, ok := cycles[cycleID]
			if !ok {
				cycle, err = s.cycleRepo.ByIDLocked(txCtx, cycleID)
				if err != nil {
					return err
				}
				cycles[cycleID] = cycle
			}
			if cycle == nil || cycle.Status != models.CycleStatusActive {
				// The cycle moved on; its contacts should not linger.
				if _, cErr := s.contactRepo.CancelNonTerminalByCycle(txCtx, cycleID); cErr != nil {
					return cErr
				}
				continue
			}

			state, err := s.tenantState(txCtx, tenants, cycle.TenantID, now)
			if err != nil {
				return err
			}
			if state == nil {
				// Inactive tenant; leave the contact scheduled.
				continue
			}
			if !state.open {
				// Outside business hours; the next pass retries.
				continue
			}
			if state.instance == nil {
				s.logger.Printf("scheduler: no active instance for tenant %d, contact %d deferred", cycle.TenantID, contact.ID)
				continue
			}

			body, failReason := s.renderContact(txCtx, contact, cycle, now, state.tenant.Location())
			if failReason != "" {
				if err := s.failContact(txCtx, contact, cycleID, failReason, affected); err != nil {
					return err
				}
				continue
			}

			claimed, err := s.contactRepo.ClaimForSending(txCtx, contact.ID, contact.Version)
			if err != nil {
				return err
			}
			if !claimed {
				continue
			}
			if err := s.contactRepo.SetRenderedMessage(txCtx, contact.ID, body); err != nil {
				return err
			}

			items = append(items, dispatchItem{
				contactID: contact.ID,
				cycleID:   cycleID,
				phone:     contact.Phone,
				body:      body,
				instance:  state.instance,
				interval:  state.billingCfg.SendInterval(),
			})
		}
		return nil
	})
	if err != nil {
		s.logger.Printf("scheduler: pass failed: %v", err)
		return
	}

	s.sendItems(ctx, items, affected)

	for cycleID := range affected {
		completed, cErr := s.cycleFlow.CheckAndComplete(ctx, cycleID)
		if cErr != nil {
			s.logger.Printf("scheduler: completion check for cycle %d failed: %v", cycleID, cErr)
			continue
		}
		if completed {
			s.logger.Printf("scheduler: cycle %d completed", cycleID)
		}
	}
}

// tenantState loads and caches the tenant, its billing config, business-hours
// verdict, and active instance. A nil state means the tenant cannot send.
func (s *CycleScheduler) tenantState(ctx context.Context, cache map[uint]*tenantState, tenantID uint, now time.Time) (*tenantState, error) {
	if state, ok := cache[tenantID]; ok {
		return state, nil
	}

	tenant, err := s.tenantRepo.ByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil || !utils.IsTrue(tenant.IsActive) {
		cache[tenantID] = nil
		return nil, nil
	}

	billingCfg, err := s.tenantRepo.BillingConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if billingCfg == nil {
		billingCfg = &models.BillingConfig{TenantID: tenantID}
	}

	open := true
	if billingCfg.BusinessHoursEnabled == nil || *billingCfg.BusinessHoursEnabled {
		isOpen, hErr := s.hours.IsOpen(ctx, tenantID, nil, now)
		if hErr != nil {
			s.logger.Printf("scheduler: business hours check failed for tenant %d: %v", tenantID, hErr)
		} else {
			open = isOpen
		}
	}

	instance, err := s.instanceRepo.ActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	state := &tenantState{
		tenant:     tenant,
		billingCfg: billingCfg,
		instance:   instance,
		open:       open,
	}
	cache[tenantID] = state
	return state, nil
}

// renderContact expands the contact's template variation. A non-empty fail
// reason means the contact cannot ever be sent.
func (s *CycleScheduler) renderContact(ctx context.Context, contact *models.BillingContact, cycle *models.BillingCycle, now time.Time, loc *time.Location) (string, string) {
	if contact.TemplateID == nil {
		return "", "contact has no template"
	}

	template, err := s.templateRepo.ByIDWithVariations(ctx, *contact.TemplateID)
	if err != nil {
		s.logger.Printf("scheduler: failed to load template %d: %v", *contact.TemplateID, err)
		return "", "template lookup failed"
	}
	if template == nil {
		return "", "template no longer exists"
	}

	var variation *models.BillingTemplateVariation
	for _, v := range template.ActiveVariations() {
		if v.Order == contact.VariationOrder {
			variation = &v
			break
		}
	}
	if variation == nil {
		// The assigned variation was deactivated; fall back to rotation.
		variation = template.PickVariation(0)
	}
	if variation == nil {
		return "", "template has no active variations"
	}

	vars := businessflow.CycleContactVariables(cycle, now, loc)
	body, err := s.engine.Render(variation.Body, vars)
	if err != nil {
		return "", err.Error()
	}
	if len(body) > models.MaxRenderedMessageLength {
		return "", services.MsgRenderedTooLong
	}
	return body, ""
}

// failContact marks a contact failed and counts it against its cycle.
func (s *CycleScheduler) failContact(ctx context.Context, contact *models.BillingContact, cycleID uint, reason string, affected map[uint]struct{}) error {
	claimed, err := s.contactRepo.ClaimForSending(ctx, contact.ID, contact.Version)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if err := s.contactRepo.MarkDispatchResult(ctx, contact.ID, models.ContactStatusFailed, reason); err != nil {
		return err
	}
	if err := s.cycleRepo.UpdateMessageCounters(ctx, cycleID, 0, 1); err != nil {
		return err
	}
	affected[cycleID] = struct{}{}
	s.logger.Printf("scheduler: contact %d failed: %s", contact.ID, reason)
	return nil
}

// sendItems dispatches claimed contacts outside the claiming transaction,
// throttled by each tenant's send interval.
func (s *CycleScheduler) sendItems(ctx context.Context, items []dispatchItem, affected map[uint]struct{}) {
	for i, item := range items {
		if ctx.Err() != nil {
			s.requeueUnsent(items[i:])
			return
		}

		resp, err := s.gateway.SendText(ctx, item.instance, item.phone, item.body, nil)
		if err == nil {
			var messageID *string
			if resp.MessageID != "" {
				messageID = &resp.MessageID
			}
			if mErr := s.contactRepo.MarkSent(ctx, item.contactID, messageID, utils.UTCNow()); mErr != nil {
				s.logger.Printf("scheduler: failed to mark contact %d sent: %v", item.contactID, mErr)
			}
			if cErr := s.cycleRepo.UpdateMessageCounters(ctx, item.cycleID, 1, 0); cErr != nil {
				s.logger.Printf("scheduler: failed to update counters for cycle %d: %v", item.cycleID, cErr)
			}
		} else {
			s.logger.Printf("scheduler: send to contact %d failed: %v", item.contactID, err)
			if mErr := s.contactRepo.MarkDispatchResult(ctx, item.contactID, models.ContactStatusFailed, err.Error()); mErr != nil {
				s.logger.Printf("scheduler: failed to mark contact %d failed: %v", item.contactID, mErr)
			}
			if cErr := s.cycleRepo.UpdateMessageCounters(ctx, item.cycleID, 0, 1); cErr != nil {
				s.logger.Printf("scheduler: failed to update counters for cycle %d: %v", item.cycleID, cErr)
			}
		}
		affected[item.cycleID] = struct{}{}

		if i < len(items)-1 {
			select {
			case <-ctx.Done():
				s.requeueUnsent(items[i+1:])
				return
			case <-time.After(item.interval):
			}
		}
	}
}

// requeueUnsent returns claimed but undispatched contacts to a retryable
// state during shutdown.
func (s *CycleScheduler) requeueUnsent(items []dispatchItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, item := range items {
		if err := s.contactRepo.MarkDispatchResult(ctx, item.contactID, models.ContactStatusPendingRetry, "shutdown before dispatch"); err != nil {
			s.logger.Printf("scheduler: failed to requeue contact %d: %v", item.contactID, err)
		}
	}
}
