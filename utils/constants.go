package utils

import (
	"time"
)

// Template date formats
const (
	// TemplateDateFormat is the Brazilian date format used inside rendered messages
	TemplateDateFormat = "02/01/2006"

	// HolidayDateFormat is the format of holiday entries in business-hours records
	HolidayDateFormat = "2006-01-02"
)

// Cycle scheduling constants
const (
	// CycleSendHour is the fixed local hour cycle messages are scheduled at
	CycleSendHour = 9

	// MaxCycleMessages is the hard cap on scheduled messages per cycle
	MaxCycleMessages = 6

	// BusinessDayShiftLimit bounds the day-by-day search for a valid send date
	BusinessDayShiftLimit = 30
)

// Gateway constants
const (
	// GatewaySendTimeout is the default timeout for a send call
	GatewaySendTimeout = 10 * time.Second

	// GatewayHealthTimeout is the timeout for the connection-state probe
	GatewayHealthTimeout = 5 * time.Second

	// GatewayRetryBaseDelay is the first backoff delay between send retries
	GatewayRetryBaseDelay = 1 * time.Second

	// DefaultCountryCode is prepended to national numbers by the phone heuristic
	DefaultCountryCode = "55"
)

// Worker constants
const (
	// QueueHeartbeatInterval is how often a worker refreshes queue ownership
	QueueHeartbeatInterval = 5 * time.Second

	// MinSendInterval is the throttle floor between consecutive sends
	MinSendInterval = 3 * time.Second
)
