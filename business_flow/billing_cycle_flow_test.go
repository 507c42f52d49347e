// Package businessflow contains the core business logic and use cases for billing workflows
package businessflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapflow/billing-engine/models"
)

func TestCycleContactVariables(t *testing.T) {
	cycle := &models.BillingCycle{
		ContactName: "Maria Silva Santos",
		DueDate:     time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		BillingData: models.BillingData{
			"valor":          150.5,
			"link_pagamento": "https://pay.example/abc",
			"codigo_pix":     "00020126pix",
		},
	}

	now := time.Date(2026, 9, 13, 12, 0, 0, 0, time.UTC)
	vars := CycleContactVariables(cycle, now, time.UTC)

	assert.Equal(t, "Maria Silva Santos", vars["nome_cliente"])
	assert.Equal(t, "Maria", vars["primeiro_nome"])
	assert.Equal(t, "R$ 150,50", vars["valor"])
	assert.Equal(t, "10/09/2026", vars["data_vencimento"])
	assert.Equal(t, 3, vars["dias_atraso"])
	assert.Equal(t, 0, vars["dias_vencimento"])
	assert.Equal(t, "https://pay.example/abc", vars["link_pagamento"])
	assert.Equal(t, "00020126pix", vars["codigo_pix"])

	_, hasNotes := vars["observacoes"]
	assert.False(t, hasNotes, "empty optional fields stay out of the variable set")
}

func TestCycleContactVariablesBeforeDue(t *testing.T) {
	cycle := &models.BillingCycle{
		ContactName: "João",
		DueDate:     time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		BillingData: models.BillingData{"valor": "99,90", "observacoes": "2ª via disponível"},
	}

	now := time.Date(2026, 9, 5, 8, 0, 0, 0, time.UTC)
	vars := CycleContactVariables(cycle, now, time.UTC)

	assert.Equal(t, "R$ 99,90", vars["valor"])
	assert.Equal(t, 0, vars["dias_atraso"])
	assert.Equal(t, 5, vars["dias_vencimento"])
	assert.Equal(t, "2ª via disponível", vars["observacoes"])
}

func TestFirstName(t *testing.T) {
	require.Equal(t, "Maria", firstName("Maria Silva"))
	require.Equal(t, "José", firstName("  José  "))
	require.Equal(t, "", firstName(""))
}
