package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCycleStatusPredicates(t *testing.T) {
	assert.False(t, CycleStatusActive.IsTerminal())
	assert.True(t, CycleStatusCancelled.IsTerminal())
	assert.True(t, CycleStatusPaid.IsTerminal())
	assert.True(t, CycleStatusCompleted.IsTerminal())

	assert.True(t, CycleStatusCancelled.CanReactivate())
	assert.True(t, CycleStatusPaid.CanReactivate())
	assert.False(t, CycleStatusCompleted.CanReactivate())
	assert.False(t, CycleStatusActive.CanReactivate())
}

func TestCycleStatusValid(t *testing.T) {
	assert.True(t, CycleStatusActive.Valid())
	assert.True(t, CycleStatusPaid.Valid())
	assert.False(t, CycleStatus("expired").Valid())
}
