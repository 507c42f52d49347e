package dto

// CreateBillingCycleRequest registers (or reactivates) a debt-collection cycle
type CreateBillingCycleRequest struct {
	TenantID          uint           `json:"-"`
	ExternalBillingID string         `json:"external_billing_id" validate:"required,min=1,max=255"`
	ContactPhone      string         `json:"contact_phone" validate:"required,min=8,max=32"`
	ContactName       string         `json:"contact_name" validate:"required,min=1,max=255"`
	DueDate           string         `json:"due_date" validate:"required,datetime=2006-01-02"`
	BillingData       map[string]any `json:"billing_data" validate:"required"`
	NotifyBeforeDue   *bool          `json:"notify_before_due,omitempty"`
	NotifyAfterDue    *bool          `json:"notify_after_due,omitempty"`
}

// CreateBillingCycleResponse represents the result of a cycle registration
type CreateBillingCycleResponse struct {
	Message           string `json:"message"`
	UUID              string `json:"uuid"`
	ExternalBillingID string `json:"external_billing_id"`
	Status            string `json:"status"`
	DueDate           string `json:"due_date"`
	TotalMessages     int    `json:"total_messages"`
	Reactivated       bool   `json:"reactivated"`
	CreatedAt         string `json:"created_at"`
}

// CancelBillingCycleRequest stops a cycle, reason distinguishes paid from cancelled
type CancelBillingCycleRequest struct {
	TenantID          uint   `json:"-"`
	ExternalBillingID string `json:"-" validate:"required,min=1,max=255"`
	Reason            string `json:"reason" validate:"required,oneof=cancelled paid"`
}

// CancelBillingCycleResponse represents the result of a cycle cancellation
type CancelBillingCycleResponse struct {
	Message           string `json:"message"`
	UUID              string `json:"uuid"`
	ExternalBillingID string `json:"external_billing_id"`
	Status            string `json:"status"`
	CancelledContacts int64  `json:"cancelled_contacts"`
}

// GetBillingCycleRequest identifies one cycle by its external reference
type GetBillingCycleRequest struct {
	TenantID          uint   `json:"-"`
	ExternalBillingID string `json:"-" validate:"required,min=1,max=255"`
}

// GetBillingCycleResponse represents a cycle with its message counters
type GetBillingCycleResponse struct {
	UUID              string  `json:"uuid"`
	ExternalBillingID string  `json:"external_billing_id"`
	ContactName       string  `json:"contact_name"`
	ContactPhone      string  `json:"contact_phone"`
	DueDate           string  `json:"due_date"`
	Status            string  `json:"status"`
	TotalMessages     int     `json:"total_messages"`
	SentMessages      int     `json:"sent_messages"`
	FailedMessages    int     `json:"failed_messages"`
	CancelledAt       *string `json:"cancelled_at,omitempty"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
}
