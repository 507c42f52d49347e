package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    QueueStatus
		to      QueueStatus
		allowed bool
	}{
		{
			name:    "pending to running",
			from:    QueueStatusPending,
			to:      QueueStatusRunning,
			allowed: true,
		},
		{
			name:    "pending to paused business hours",
			from:    QueueStatusPending,
			to:      QueueStatusPausedBusinessHours,
			allowed: true,
		},
		{
			name:    "pending cannot complete directly",
			from:    QueueStatusPending,
			to:      QueueStatusCompleted,
			allowed: false,
		},
		{
			name:    "running to completed",
			from:    QueueStatusRunning,
			to:      QueueStatusCompleted,
			allowed: true,
		},
		{
			name:    "running back to pending",
			from:    QueueStatusRunning,
			to:      QueueStatusPending,
			allowed: true,
		},
		{
			name:    "running to paused instance down",
			from:    QueueStatusRunning,
			to:      QueueStatusPausedInstanceDown,
			allowed: true,
		},
		{
			name:    "paused resumes to pending",
			from:    QueueStatusPaused,
			to:      QueueStatusPending,
			allowed: true,
		},
		{
			name:    "paused business hours resumes to running",
			from:    QueueStatusPausedBusinessHours,
			to:      QueueStatusRunning,
			allowed: true,
		},
		{
			name:    "paused cannot complete directly",
			from:    QueueStatusPausedInstanceDown,
			to:      QueueStatusCompleted,
			allowed: false,
		},
		{
			name:    "completed is terminal",
			from:    QueueStatusCompleted,
			to:      QueueStatusPending,
			allowed: false,
		},
		{
			name:    "cancelled is terminal",
			from:    QueueStatusCancelled,
			to:      QueueStatusRunning,
			allowed: false,
		},
		{
			name:    "any active state can cancel",
			from:    QueueStatusPaused,
			to:      QueueStatusCancelled,
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestQueueStatusPredicates(t *testing.T) {
	assert.True(t, QueueStatusCompleted.IsTerminal())
	assert.True(t, QueueStatusCancelled.IsTerminal())
	assert.False(t, QueueStatusRunning.IsTerminal())
	assert.False(t, QueueStatusPaused.IsTerminal())

	assert.True(t, QueueStatusPaused.IsPaused())
	assert.True(t, QueueStatusPausedBusinessHours.IsPaused())
	assert.True(t, QueueStatusPausedInstanceDown.IsPaused())
	assert.False(t, QueueStatusPending.IsPaused())
	assert.False(t, QueueStatusCompleted.IsPaused())
}

func TestQueueStatusValid(t *testing.T) {
	assert.True(t, QueueStatusPending.Valid())
	assert.True(t, QueueStatusPausedBusinessHours.Valid())
	assert.False(t, QueueStatus("archived").Valid())
	assert.False(t, QueueStatus("").Valid())
}
