package model

import (
	"time"

	"github.com/google/uuid"
)

// Page bounds for the raw analytics listings.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// EventQuery pages through the raw events of one project, newest first.
// DeviceID is the SDK identifier, not the device row id. From and To are
// inclusive; zero values leave that side open.
type EventQuery struct {
	ProjectID uuid.UUID
	EventType EventType
	EventName string
	DeviceID  string
	Platform  string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// DeviceQuery pages through the devices of one project, most recently seen
// first. FirstSeenFrom bounds first_seen from below, LastSeenTo bounds
// last_seen from above.
type DeviceQuery struct {
	ProjectID     uuid.UUID
	Platform      string
	FirstSeenFrom time.Time
	LastSeenTo    time.Time
	Limit         int
	Offset        int
}
