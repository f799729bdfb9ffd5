package models

import "time"

// ============================================================
// DISPLAY EVENTS
// ============================================================

const (
	EventOverlay    = "overlay"
	EventEnrollment = "enrollment"
	EventAttendance = "attendance"
	EventManual     = "manual"
	EventPeople     = "people"
)

// DisplayEvent is pushed to every connected kiosk display.
type DisplayEvent struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}
