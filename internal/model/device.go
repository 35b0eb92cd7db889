package model

import (
	"time"

	"github.com/google/uuid"
)

// Device is a client install. DeviceID is the opaque identifier reported by the SDK
// and is only unique within its project.
type Device struct {
	ID         uuid.UUID `json:"id"`
	ProjectID  uuid.UUID `json:"project_id"`
	DeviceID   string    `json:"device_id"`
	Platform   string    `json:"platform"`
	OSVersion  string    `json:"os_version"`
	AppVersion string    `json:"app_version"`
	Country    string    `json:"country"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// Session is a device-scoped activity window. EndTime and Duration are nil while
// the session is still in progress.
type Session struct {
	ID        uuid.UUID
	DeviceID  uuid.UUID
	SessionID string
	StartTime time.Time
	EndTime   *time.Time
	Duration  *int64 // seconds
}

// Completed reports whether both the end time and the duration were recorded.
func (s Session) Completed() bool {
	return s.EndTime != nil && s.Duration != nil
}
