package businessflow

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/billing-engine/app/dto"
	"github.com/zapflow/billing-engine/app/services"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/repository"
	testhelpers "github.com/zapflow/billing-engine/testing"
)

type cycleFlowTestEnv struct {
	flow        BillingCycleFlow
	fixtures    *testhelpers.TestFixtures
	tenant      *models.Tenant
	cycleRepo   repository.BillingCycleRepository
	contactRepo repository.BillingContactRepository
}

func setupCycleFlowTest(t *testing.T) *cycleFlowTestEnv {
	t.Helper()

	tdb, err := testhelpers.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := tdb.TeardownTestDB(); err != nil {
			t.Logf("teardown: %v", err)
		}
	})

	fixtures := testhelpers.NewTestFixtures(tdb)
	tenant, err := fixtures.CreateTestTenant()
	require.NoError(t, err)
	_, err = fixtures.CreateTestBusinessHours(tenant.ID)
	require.NoError(t, err)
	_, err = fixtures.CreateTestTemplate(tenant.ID, models.TemplateTypeUpcoming,
		"Olá {{nome_cliente}}, sua fatura de {{valor}} vence em {{data_vencimento}}.")
	require.NoError(t, err)
	_, err = fixtures.CreateTestTemplate(tenant.ID, models.TemplateTypeOverdue,
		"Olá {{nome_cliente}}, sua fatura de {{valor}} está atrasada.")
	require.NoError(t, err)

	cycleRepo := repository.NewBillingCycleRepository(tdb.DB)
	contactRepo := repository.NewBillingContactRepository(tdb.DB)
	hours := services.NewBusinessHoursOracle(repository.NewBusinessHoursRepository(tdb.DB))

	flow := NewBillingCycleFlow(
		repository.NewTenantRepository(tdb.DB),
		repository.NewBillingTemplateRepository(tdb.DB),
		cycleRepo,
		contactRepo,
		hours,
		"55",
		tdb.DB,
	)

	return &cycleFlowTestEnv{
		flow:        flow,
		fixtures:    fixtures,
		tenant:      tenant,
		cycleRepo:   cycleRepo,
		contactRepo: contactRepo,
	}
}

func cycleRequest(tenantID uint, externalBillingID string) *dto.CreateBillingCycleRequest {
	return &dto.CreateBillingCycleRequest{
		TenantID:          tenantID,
		ExternalBillingID: externalBillingID,
		ContactPhone:      "(11) 99999-0000",
		ContactName:       "Ana Souza",
		DueDate:           "2025-02-10",
		BillingData:       map[string]any{"valor": "150.50"},
	}
}

func TestCreateCycleSchedulesMessagePlan(t *testing.T) {
	env := setupCycleFlowTest(t)
	ctx := context.Background()

	resp, err := env.flow.CreateCycle(ctx, cycleRequest(env.tenant.ID, "INV-42"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusActive.String(), resp.Status)
	assert.False(t, resp.Reactivated)
	assert.Equal(t, 6, resp.TotalMessages)

	cycle, err := env.cycleRepo.ByTenantAndExternalID(ctx, env.tenant.ID, "INV-42")
	require.NoError(t, err)
	require.NotNil(t, cycle)

	contacts, err := env.contactRepo.ByFilter(ctx,
		models.BillingContactFilter{BillingCycleID: &cycle.ID}, "scheduled_at ASC", 0, 0)
	require.NoError(t, err)
	require.Len(t, contacts, 6)

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// Due Monday 2025-02-10: the -5/-3/-1 day targets land on Wed 05, Fri 07
	// and Sun 09 (shifted back to Fri 07); the +1/+3/+5 targets land on Tue 11,
	// Thu 13 and Sat 15 (shifted forward to Mon 17).
	var dates []string
	for _, contact := range contacts {
		require.NotNil(t, contact.ScheduledAt)
		local := contact.ScheduledAt.In(saoPaulo)
		assert.Equal(t, 9, local.Hour())
		assert.Equal(t, 0, local.Minute())
		assert.Equal(t, models.ContactStatusPending, contact.Status)
		assert.Equal(t, "+5511999990000", contact.Phone)
		dates = append(dates, local.Format("2006-01-02"))
	}
	sort.Strings(dates)
	assert.Equal(t, []string{
		"2025-02-05", "2025-02-07", "2025-02-07",
		"2025-02-11", "2025-02-13", "2025-02-17",
	}, dates)
}

func TestCancelCycleSweepsOpenContacts(t *testing.T) {
	env := setupCycleFlowTest(t)
	ctx := context.Background()

	_, err := env.flow.CreateCycle(ctx, cycleRequest(env.tenant.ID, "INV-77"), nil)
	require.NoError(t, err)

	cycle, err := env.cycleRepo.ByTenantAndExternalID(ctx, env.tenant.ID, "INV-77")
	require.NoError(t, err)
	require.NotNil(t, cycle)

	// Two messages already went out before the debt is settled.
	contacts, err := env.contactRepo.ByFilter(ctx,
		models.BillingContactFilter{BillingCycleID: &cycle.ID}, "id ASC", 0, 0)
	require.NoError(t, err)
	require.Len(t, contacts, 6)
	for _, contact := range contacts[:2] {
		require.NoError(t, env.fixtures.DB.DB.Model(&models.BillingContact{}).
			Where("id = ?", contact.ID).
			Update("status", models.ContactStatusSent).Error)
	}

	resp, err := env.flow.CancelCycle(ctx, &dto.CancelBillingCycleRequest{
		TenantID:          env.tenant.ID,
		ExternalBillingID: "INV-77",
		Reason:            "paid",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.CycleStatusPaid.String(), resp.Status)
	assert.Equal(t, int64(4), resp.CancelledContacts)

	contacts, err = env.contactRepo.ByFilter(ctx,
		models.BillingContactFilter{BillingCycleID: &cycle.ID}, "id ASC", 0, 0)
	require.NoError(t, err)
	sent, cancelled := 0, 0
	for _, contact := range contacts {
		switch contact.Status {
		case models.ContactStatusSent:
			sent++
		case models.ContactStatusCancelled:
			cancelled++
		}
	}
	assert.Equal(t, 2, sent, "dispatched messages keep their history")
	assert.Equal(t, 4, cancelled)
}

func TestCycleReactivationKeepsExistingPlan(t *testing.T) {
	env := setupCycleFlowTest(t)
	ctx := context.Background()

	_, err := env.flow.CreateCycle(ctx, cycleRequest(env.tenant.ID, "INV-42"), nil)
	require.NoError(t, err)

	_, err = env.flow.CancelCycle(ctx, &dto.CancelBillingCycleRequest{
		TenantID:          env.tenant.ID,
		ExternalBillingID: "INV-42",
		Reason:            "cancelled",
	}, nil)
	require.NoError(t, err)

	resp, err := env.flow.CreateCycle(ctx, cycleRequest(env.tenant.ID, "INV-42"), nil)
	require.NoError(t, err)
	assert.True(t, resp.Reactivated)
	assert.Equal(t, models.CycleStatusActive.String(), resp.Status)

	cycle, err := env.cycleRepo.ByTenantAndExternalID(ctx, env.tenant.ID, "INV-42")
	require.NoError(t, err)
	require.NotNil(t, cycle)
	assert.Equal(t, models.CycleStatusActive, cycle.Status)
	assert.Nil(t, cycle.CancelledAt)

	count, err := env.contactRepo.Count(ctx, models.BillingContactFilter{BillingCycleID: &cycle.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(6), count, "resubmission must not duplicate the plan")

	cycles, err := env.cycleRepo.Count(ctx, models.BillingCycleFilter{TenantID: &env.tenant.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), cycles)
}

func TestConcurrentCycleSubmissionsResolveToOneRow(t *testing.T) {
	env := setupCycleFlowTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.flow.CreateCycle(ctx, cycleRequest(env.tenant.ID, "INV-RACE"), nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "submission %d", i)
	}

	cycles, err := env.cycleRepo.ByFilter(ctx,
		models.BillingCycleFilter{TenantID: &env.tenant.ID}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, cycles, 1)

	count, err := env.contactRepo.Count(ctx,
		models.BillingContactFilter{BillingCycleID: &cycles[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
}
