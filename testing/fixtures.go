// Package testing provides test utilities and database setup for testing the billing engine
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/lib/pq"
	"github.com/zapflow/billing-engine/models"
	"github.com/zapflow/billing-engine/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestTenant creates an active tenant with a default billing config
func (tf *TestFixtures) CreateTestTenant() (*models.Tenant, error) {
	tenant := &models.Tenant{
		Name:     fmt.Sprintf("Tenant %04d", rand.Intn(10000)),
		Timezone: "America/Sao_Paulo",
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tenant: %w", err)
	}

	billingConfig := &models.BillingConfig{
		TenantID:             tenant.ID,
		MessagesPerMinute:    20,
		MaxRetries:           3,
		MaxBatchContacts:     100,
		BusinessHoursEnabled: utils.ToPtr(true),
		NotifyBeforeDays:     pq.Int64Array{5, 3, 1},
		NotifyAfterDays:      pq.Int64Array{1, 3, 5},
	}
	if err := tf.DB.DB.Create(billingConfig).Error; err != nil {
		return nil, fmt.Errorf("failed to create test billing config: %w", err)
	}

	tenant.BillingConfig = billingConfig
	return tenant, nil
}

// CreateTestInstance creates an active WhatsApp instance for the tenant
func (tf *TestFixtures) CreateTestInstance(tenantID uint) (*models.WhatsAppInstance, error) {
	instance := &models.WhatsAppInstance{
		TenantID:        tenantID,
		InstanceName:    fmt.Sprintf("instance-%04d", rand.Intn(10000)),
		APIURL:          "http://localhost:8080",
		APIKey:          "test-api-key",
		IsActive:        utils.ToPtr(true),
		ConnectionState: "open",
	}
	if err := tf.DB.DB.Create(instance).Error; err != nil {
		return nil, fmt.Errorf("failed to create test instance: %w", err)
	}
	return instance, nil
}

// CreateTestTemplate creates an active template of the given type with the
// given variation bodies.
func (tf *TestFixtures) CreateTestTemplate(tenantID uint, templateType models.TemplateType, bodies ...string) (*models.BillingTemplate, error) {
	if len(bodies) == 0 {
		bodies = []string{"Olá {{nome_cliente}}, sua fatura de {{valor}} vence em {{data_vencimento}}."}
	}

	template := &models.BillingTemplate{
		TenantID: tenantID,
		Name:     fmt.Sprintf("template-%s-%04d", templateType, rand.Intn(10000)),
		Type:     templateType,
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(template).Error; err != nil {
		return nil, fmt.Errorf("failed to create test template: %w", err)
	}

	for i, body := range bodies {
		variation := &models.BillingTemplateVariation{
			TemplateID: template.ID,
			Order:      i + 1,
			Body:       body,
			IsActive:   utils.ToPtr(true),
		}
		if err := tf.DB.DB.Create(variation).Error; err != nil {
			return nil, fmt.Errorf("failed to create test variation: %w", err)
		}
		template.Variations = append(template.Variations, *variation)
	}

	return template, nil
}

// CreateTestBusinessHours creates a tenant-wide schedule open Monday through
// Friday 08:00 to 18:00.
func (tf *TestFixtures) CreateTestBusinessHours(tenantID uint, holidays ...string) (*models.BusinessHours, error) {
	var week models.WeekSchedule
	for day := time.Monday; day <= time.Friday; day++ {
		week[day] = models.DaySchedule{Enabled: true, Start: "08:00", End: "18:00"}
	}

	hours := &models.BusinessHours{
		TenantID: tenantID,
		Timezone: "America/Sao_Paulo",
		Weekdays: week,
		Holidays: pq.StringArray(holidays),
		IsActive: utils.ToPtr(true),
	}
	if hours.Holidays == nil {
		hours.Holidays = pq.StringArray{}
	}
	if err := tf.DB.DB.Create(hours).Error; err != nil {
		return nil, fmt.Errorf("failed to create test business hours: %w", err)
	}
	return hours, nil
}

// CreateTestCycle creates an active billing cycle for the tenant
func (tf *TestFixtures) CreateTestCycle(tenantID uint, dueDate time.Time) (*models.BillingCycle, error) {
	cycle := &models.BillingCycle{
		TenantID:          tenantID,
		ExternalBillingID: fmt.Sprintf("fatura-%06d", rand.Intn(1000000)),
		ContactPhone:      "+5511999990000",
		ContactName:       "Maria Silva",
		DueDate:           dueDate,
		BillingData: models.BillingData{
			"valor": 150.5,
		},
		NotifyBeforeDue: utils.ToPtr(true),
		NotifyAfterDue:  utils.ToPtr(true),
		Status:          models.CycleStatusActive,
	}
	if err := tf.DB.DB.Create(cycle).Error; err != nil {
		return nil, fmt.Errorf("failed to create test cycle: %w", err)
	}
	return cycle, nil
}

// CreateTestCampaign creates a billing campaign with its queue and the given
// number of pending contacts.
func (tf *TestFixtures) CreateTestCampaign(tenantID uint, templateID uint, templateType models.TemplateType, contactCount int) (*models.BillingCampaign, *models.BillingQueue, error) {
	campaign := &models.Campaign{TenantID: tenantID}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	billingCampaign := &models.BillingCampaign{
		CampaignID: campaign.ID,
		TenantID:   tenantID,
		Type:       templateType,
		TemplateID: templateID,
	}
	if err := tf.DB.DB.Create(billingCampaign).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create test billing campaign: %w", err)
	}

	queue := &models.BillingQueue{
		BillingCampaignID: billingCampaign.ID,
		TenantID:          tenantID,
		Status:            models.QueueStatusPending,
		TotalContacts:     contactCount,
	}
	if err := tf.DB.DB.Create(queue).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create test queue: %w", err)
	}

	for i := 0; i < contactCount; i++ {
		contact := &models.BillingContact{
			TenantID:          tenantID,
			BillingCampaignID: &billingCampaign.ID,
			TemplateID:        &templateID,
			VariationOrder:    1,
			ContactName:       fmt.Sprintf("Contato %d", i+1),
			Phone:             fmt.Sprintf("+55119%08d", rand.Intn(100000000)),
			RenderedMessage:   fmt.Sprintf("Mensagem de teste %d", i+1),
			Status:            models.ContactStatusPending,
			BillingData:       models.BillingData{"valor": 99.9},
		}
		if err := tf.DB.DB.Create(contact).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to create test contact: %w", err)
		}
	}

	return billingCampaign, queue, nil
}
