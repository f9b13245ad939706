package models

import "time"

// Twin event types recorded in the local activity log.
const (
	EventToggle   = "TOGGLE"    // manual device toggle applied
	EventRevert   = "REVERT"    // optimistic toggle rolled back
	EventAutobot  = "AUTOBOT"   // automation mode switched
	EventSchedule = "SCHEDULE"  // scheduled light change
	EventPumpRun  = "PUMP_RUN"  // irrigation pump run started/finished
	EventWarning  = "WARNING"   // channel warning level changed
	EventSettings = "SETTINGS"  // settings saved
)

// TwinEvent is a single entry in the local activity log.
type TwinEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// User is a dashboard operator account. The login is a demo gate, not a
// security boundary.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}
