package dto

// CampaignContactDTO is one contact payload inside a campaign submission.
// Field names follow the caller-facing Portuguese contract.
type CampaignContactDTO struct {
	Nome           string `json:"nome" validate:"required,min=1,max=255" example:"Ana Souza"`
	Telefone       string `json:"telefone" validate:"required,min=8,max=32" example:"(11) 99999-0000"`
	Valor          any    `json:"valor" validate:"required" example:"150.5"`
	DataVencimento string `json:"data_vencimento" validate:"required" example:"2025-01-02"`
	LinkPagamento  string `json:"link_pagamento,omitempty" validate:"omitempty,max=2048"`
	CodigoPix      string `json:"codigo_pix,omitempty" validate:"omitempty,max=512"`
	Observacoes    string `json:"observacoes,omitempty" validate:"omitempty,max=1024"`
}

// CreateBillingCampaignRequest represents a campaign submission for one template type
type CreateBillingCampaignRequest struct {
	TenantID   uint                 `json:"-"`
	Type       string               `json:"-" validate:"required,oneof=overdue upcoming notification"`
	ExternalID *string              `json:"external_id,omitempty" validate:"omitempty,max=255"`
	InstanceID *string              `json:"instance_id,omitempty" validate:"omitempty,uuid"`
	Contacts   []CampaignContactDTO `json:"contacts" validate:"required,min=1,dive"`
}

// CreateBillingCampaignResponse represents the result of a campaign submission
type CreateBillingCampaignResponse struct {
	Message       string `json:"message"`
	CampaignID    string `json:"campaign_id"`
	QueueID       string `json:"queue_id"`
	TotalContacts int    `json:"total_contacts"`
	SkippedCount  int    `json:"skipped_count,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// GetBillingCampaignRequest identifies one billing campaign
type GetBillingCampaignRequest struct {
	TenantID uint   `json:"-"`
	UUID     string `json:"-" validate:"required,uuid"`
}

// BillingQueueDTO is the user-visible progress of one campaign queue
type BillingQueueDTO struct {
	UUID              string  `json:"uuid"`
	Status            string  `json:"status"`
	TotalContacts     int     `json:"total_contacts"`
	ProcessedContacts int     `json:"processed_contacts"`
	SentCount         int     `json:"sent_count"`
	FailedCount       int     `json:"failed_count"`
	ProcessingBy      *string `json:"processing_by,omitempty"`
	LastHeartbeat     *string `json:"last_heartbeat,omitempty"`
	CompletedAt       *string `json:"completed_at,omitempty"`
}

// GetBillingCampaignResponse represents a campaign with its queue progress
type GetBillingCampaignResponse struct {
	UUID       string           `json:"uuid"`
	Type       string           `json:"type"`
	ExternalID *string          `json:"external_id,omitempty"`
	CreatedAt  string           `json:"created_at"`
	Queue      *BillingQueueDTO `json:"queue,omitempty"`
}
