package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies telemetry events.
type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
	EventInstall      EventType = "install"
	EventUninstall    EventType = "uninstall"
	EventCustom       EventType = "custom"
)

// Event is an immutable telemetry fact. DeviceID is null for events reported
// without a device. Platform is read from the joined device row and is empty
// when the event has no device.
type Event struct {
	ID         uuid.UUID     `json:"id"`
	ProjectID  uuid.UUID     `json:"project_id"`
	DeviceID   uuid.NullUUID `json:"device_id"`
	EventType  EventType     `json:"event_type"`
	EventName  string        `json:"event_name"`
	Parameters string        `json:"parameters,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Platform   string        `json:"platform,omitempty"`
}

// EventFilter selects events of one project within [Window.Start, Window.End).
type EventFilter struct {
	ProjectID  uuid.UUID
	Window     Window
	DeviceOnly bool
}
