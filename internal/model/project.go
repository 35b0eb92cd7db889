package model

import (
	"time"

	"github.com/google/uuid"
)

// Project is the tenant boundary. Devices, events and metrics belong to exactly one project.
type Project struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	APIKey    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
