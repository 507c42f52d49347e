package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSendInterval(t *testing.T) {
	tests := []struct {
		name     string
		mpm      int
		expected time.Duration
	}{
		{
			name:     "ten per minute",
			mpm:      10,
			expected: 6 * time.Second,
		},
		{
			name:     "six per minute",
			mpm:      6,
			expected: 10 * time.Second,
		},
		{
			name:     "default twenty per minute hits the floor",
			mpm:      20,
			expected: 3 * time.Second,
		},
		{
			name:     "high rate clamped to floor",
			mpm:      60,
			expected: 3 * time.Second,
		},
		{
			name:     "zero falls back to default",
			mpm:      0,
			expected: 3 * time.Second,
		},
		{
			name:     "negative falls back to default",
			mpm:      -5,
			expected: 3 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &BillingConfig{MessagesPerMinute: tt.mpm}
			assert.Equal(t, tt.expected, cfg.SendInterval())
		})
	}
}
