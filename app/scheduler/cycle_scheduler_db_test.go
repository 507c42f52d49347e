package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	businessflow "github.com/zapflow/billing-engine/business_flow"

	"github.com/zapflow/billing-engine/app/services"
	"github.com/zapflow/billing-engine/config"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/repository"
	testhelpers "github.com/zapflow/billing-engine/testing"
	"github.com/zapflow/billing-engine/utils"
)

type schedulerTestEnv struct {
	scheduler   *CycleScheduler
	gateway     *services.MockGatewayClient
	fixtures    *testhelpers.TestFixtures
	tenant      *models.Tenant
	cycleRepo   repository.BillingCycleRepository
	contactRepo repository.BillingContactRepository
}

func setupSchedulerTest(t *testing.T) *schedulerTestEnv {
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
	_, err = fixtures.CreateTestInstance(tenant.ID)
	require.NoError(t, err)

	// The pass gates on the wall clock when business hours are enforced;
	// disable them so the test does not depend on when it runs.
	require.NoError(t, tdb.DB.Model(&models.BillingConfig{}).
		Where("tenant_id = ?", tenant.ID).
		Update("business_hours_enabled", false).Error)

	tenantRepo := repository.NewTenantRepository(tdb.DB)
	templateRepo := repository.NewBillingTemplateRepository(tdb.DB)
	cycleRepo := repository.NewBillingCycleRepository(tdb.DB)
	contactRepo := repository.NewBillingContactRepository(tdb.DB)
	instanceRepo := repository.NewWhatsAppInstanceRepository(tdb.DB)
	hours := services.NewBusinessHoursOracle(repository.NewBusinessHoursRepository(tdb.DB))

	cycleFlow := businessflow.NewBillingCycleFlow(
		tenantRepo, templateRepo, cycleRepo, contactRepo, hours, "55", tdb.DB)

	gateway := services.NewMockGatewayClient()
	scheduler := NewCycleScheduler(
		config.SchedulerConfig{Enabled: true, BatchSize: 10},
		tdb.DB,
		contactRepo,
		cycleRepo,
		templateRepo,
		tenantRepo,
		instanceRepo,
		cycleFlow,
		services.NewTemplateEngine(true),
		hours,
		gateway,
	)

	return &schedulerTestEnv{
		scheduler:   scheduler,
		gateway:     gateway,
		fixtures:    fixtures,
		tenant:      tenant,
		cycleRepo:   cycleRepo,
		contactRepo: contactRepo,
	}
}

// dueCycleContact creates a cycle with one scheduled contact already due,
// rendered from the given template variation body.
func (env *schedulerTestEnv) dueCycleContact(t *testing.T, body string) (*models.BillingCycle, *models.BillingContact) {
	t.Helper()

	template, err := env.fixtures.CreateTestTemplate(env.tenant.ID, models.TemplateTypeOverdue, body)
	require.NoError(t, err)

	cycle, err := env.fixtures.CreateTestCycle(env.tenant.ID, utils.UTCNow().AddDate(0, 0, -3))
	require.NoError(t, err)

	scheduledAt := utils.UTCNow().Add(-time.Minute)
	contact := &models.BillingContact{
		TenantID:       env.tenant.ID,
		BillingCycleID: &cycle.ID,
		TemplateID:     &template.ID,
		VariationOrder: 1,
		ContactName:    cycle.ContactName,
		Phone:          cycle.ContactPhone,
		Status:         models.ContactStatusPending,
		ScheduledAt:    &scheduledAt,
		BillingData:    cycle.BillingData,
	}
	require.NoError(t, env.fixtures.DB.DB.Create(contact).Error)
	require.NoError(t, env.fixtures.DB.DB.Model(cycle).Update("total_messages", 1).Error)

	return cycle, contact
}

func TestRunOnceDispatchesDueContact(t *testing.T) {
	env := setupSchedulerTest(t)
	cycle, contact := env.dueCycleContact(t,
		"Olá {{nome_cliente}}, sua fatura de {{valor}} está atrasada há {{dias_atraso}} dia(s).")

	env.scheduler.runOnce(context.Background())

	sent := env.gateway.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "+5511999990000", sent[0].Phone)
	assert.Contains(t, sent[0].Body, "Maria Silva")
	assert.Contains(t, sent[0].Body, "R$ 150,50")

	updated, err := env.contactRepo.ByID(context.Background(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactStatusSent, updated.Status)
	assert.Equal(t, sent[0].Body, updated.RenderedMessage)
	require.NotNil(t, updated.GatewayMessageID)

	done, err := env.cycleRepo.ByID(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, done.SentMessages)
	assert.Equal(t, models.CycleStatusCompleted, done.Status, "all contacts final, cycle closes")
}

func TestRunOnceFailsOversizedRender(t *testing.T) {
	env := setupSchedulerTest(t)
	cycle, contact := env.dueCycleContact(t, strings.Repeat("x", models.MaxRenderedMessageLength+5))

	env.scheduler.runOnce(context.Background())

	assert.Empty(t, env.gateway.SentMessages(), "oversized bodies never reach the gateway")

	updated, err := env.contactRepo.ByID(context.Background(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactStatusFailed, updated.Status)
	assert.Equal(t, services.MsgRenderedTooLong, updated.BillingData.GetString("last_error"))

	done, err := env.cycleRepo.ByID(context.Background(), cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, done.FailedMessages)
	assert.Equal(t, models.CycleStatusCompleted, done.Status)
}

func TestRunOnceSkipsInactiveCycle(t *testing.T) {
	env := setupSchedulerTest(t)
	cycle, contact := env.dueCycleContact(t, "Olá {{nome_cliente}}.")

	require.NoError(t, env.fixtures.DB.DB.Model(cycle).
		Update("status", models.CycleStatusPaid).Error)

	env.scheduler.runOnce(context.Background())

	assert.Empty(t, env.gateway.SentMessages())

	updated, err := env.contactRepo.ByID(context.Background(), contact.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactStatusCancelled, updated.Status,
		"contacts of a settled cycle are swept instead of dispatched")
}
