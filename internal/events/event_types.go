package events

import (
	"time"

	"github.com/spec-kit/parcel-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPackageCreated        EventType = "package_created"
	EventPackageUpdated        EventType = "package_updated"
	EventPackageStatusAdvanced EventType = "package_status_advanced"
	EventPackageDeleted        EventType = "package_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	TrackingCode string      `json:"tracking_code"`
	AdminID      string      `json:"admin_id,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// PackageCreatedPayload payload.
type PackageCreatedPayload struct {
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Status      domain.Status `json:"status"`
}

// PackageUpdatedPayload payload.
type PackageUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// PackageStatusAdvancedPayload payload.
type PackageStatusAdvancedPayload struct {
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
	Location  string        `json:"location"`
}

// PackageDeletedPayload payload.
type PackageDeletedPayload struct{}
