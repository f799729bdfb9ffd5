package models

import (
	"fmt"
	"strings"
	"time"
)

// ============================================================
// PERSON REGISTRY
// ============================================================

// PersonRecord is a row of the backend person registry. Timestamps are kept
// as the backend sends them; use ParseTimestamp to read them.
type PersonRecord struct {
	Ident     string `json:"ident"`
	TimeZone  string `json:"time_zone"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ============================================================
// ENROLLMENT ROLES
// ============================================================

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleStaff   Role = "staff"
)

// ParseRole accepts the role names used by the enrollment form.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleTeacher, RoleStaff:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ============================================================
// CAPTURED PHOTO
// ============================================================

type CapturedPhoto struct {
	Surface   Surface
	Image     []byte // JPEG
	Width     int
	Height    int
	CreatedAt time.Time
}

// ============================================================
// TIMESTAMPS
// ============================================================

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTimestamp parses the timestamp formats the backend is known to emit.
// Values without an offset are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
