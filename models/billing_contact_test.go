package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ContactStatus
		to      ContactStatus
		allowed bool
	}{
		{
			name:    "pending to sending",
			from:    ContactStatusPending,
			to:      ContactStatusSending,
			allowed: true,
		},
		{
			name:    "pending cannot skip to sent",
			from:    ContactStatusPending,
			to:      ContactStatusSent,
			allowed: false,
		},
		{
			name:    "pending retry to sending",
			from:    ContactStatusPendingRetry,
			to:      ContactStatusSending,
			allowed: true,
		},
		{
			name:    "sending to sent",
			from:    ContactStatusSending,
			to:      ContactStatusSent,
			allowed: true,
		},
		{
			name:    "sending to failed",
			from:    ContactStatusSending,
			to:      ContactStatusFailed,
			allowed: true,
		},
		{
			name:    "sending back to pending retry",
			from:    ContactStatusSending,
			to:      ContactStatusPendingRetry,
			allowed: true,
		},
		{
			name:    "sent upgraded by delivery receipt",
			from:    ContactStatusSent,
			to:      ContactStatusDelivered,
			allowed: true,
		},
		{
			name:    "sent upgraded by read receipt",
			from:    ContactStatusSent,
			to:      ContactStatusRead,
			allowed: true,
		},
		{
			name:    "delivered to read",
			from:    ContactStatusDelivered,
			to:      ContactStatusRead,
			allowed: true,
		},
		{
			name:    "sent cannot regress",
			from:    ContactStatusSent,
			to:      ContactStatusPending,
			allowed: false,
		},
		{
			name:    "failed is terminal",
			from:    ContactStatusFailed,
			to:      ContactStatusPendingRetry,
			allowed: false,
		},
		{
			name:    "cancelled is terminal",
			from:    ContactStatusCancelled,
			to:      ContactStatusSending,
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestContactStatusIsTerminal(t *testing.T) {
	terminal := []ContactStatus{
		ContactStatusSent, ContactStatusDelivered, ContactStatusRead,
		ContactStatusFailed, ContactStatusCancelled,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s must be terminal", s)
	}

	open := []ContactStatus{ContactStatusPending, ContactStatusSending, ContactStatusPendingRetry}
	for _, s := range open {
		assert.False(t, s.IsTerminal(), "%s must not be terminal", s)
	}
}
