package domain

import (
	"sort"
	"strings"
	"time"

	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

// Status enumerates the delivery lifecycle stages shown to recipients.
type Status string

const (
	StatusPickedUp       Status = "Pris en charge"
	StatusInTransit      Status = "En cours d'acheminement"
	StatusCustomsHold    Status = "Bloqué au dédouanement"
	StatusAtHub          Status = "Arrivé au hub de distribution"
	StatusOutForDelivery Status = "En cours de livraison"
	StatusDeliveryFailed Status = "Tentative de livraison échouée"
	StatusDelivered      Status = "Livré"
	StatusReturned       Status = "Retour à l'expéditeur"
)

// InitialStatus is assigned to every newly created package.
const InitialStatus = StatusPickedUp

// AllStatuses returns the enumeration in operational order.
func AllStatuses() []Status {
	return []Status{
		StatusPickedUp,
		StatusInTransit,
		StatusCustomsHold,
		StatusAtHub,
		StatusOutForDelivery,
		StatusDeliveryFailed,
		StatusDelivered,
		StatusReturned,
	}
}

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	for _, candidate := range AllStatuses() {
		if s == candidate {
			return true
		}
	}
	return false
}

// TransitionValidator decides whether a status may follow another. Shipments
// can be returned or re-attempted, so the default is permissive; a stricter
// state machine can be plugged in without touching the aggregate.
type TransitionValidator interface {
	Allowed(from, to Status) bool
}

// PermissiveTransitions allows any status to follow any other.
type PermissiveTransitions struct{}

// Allowed always returns true.
func (PermissiveTransitions) Allowed(from, to Status) bool { return true }

// ContactInfo identifies one side of a shipment.
type ContactInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// StatusEvent is one immutable entry in a package's history.
type StatusEvent struct {
	Status    Status    `json:"status"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Package is the aggregate root for a shipment, identified by its tracking code.
type Package struct {
	TrackingCode  string        `json:"id"`
	AdminID       string        `json:"adminId"`
	Sender        ContactInfo   `json:"sender"`
	Recipient     ContactInfo   `json:"recipient"`
	Origin        string        `json:"origin"`
	Destination   string        `json:"destination"`
	CurrentStatus Status        `json:"currentStatus"`
	StatusHistory []StatusEvent `json:"statusHistory"`
	Version       int64         `json:"-"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// CreateInput describes a package creation request.
type CreateInput struct {
	TrackingCode string
	AdminID      string
	Sender       ContactInfo
	Recipient    ContactInfo
	Origin       string
	Destination  string
}

// NormalizeTrackingCode upper-cases and trims a tracking code so that lookups
// are case-insensitive.
func NormalizeTrackingCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewPackage validates input and returns the aggregate seeded with its first
// history event at the origin location.
func NewPackage(input CreateInput, now time.Time) (*Package, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	initial := StatusEvent{
		Status:    InitialStatus,
		Location:  strings.TrimSpace(input.Origin),
		Timestamp: now,
	}

	return &Package{
		TrackingCode:  NormalizeTrackingCode(input.TrackingCode),
		AdminID:       input.AdminID,
		Sender:        trimContact(input.Sender),
		Recipient:     trimContact(input.Recipient),
		Origin:        strings.TrimSpace(input.Origin),
		Destination:   strings.TrimSpace(input.Destination),
		CurrentStatus: InitialStatus,
		StatusHistory: []StatusEvent{initial},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func validateCreate(input CreateInput) error {
	required := []struct {
		field string
		value string
	}{
		{"sender.name", input.Sender.Name},
		{"sender.address", input.Sender.Address},
		{"recipient.name", input.Recipient.Name},
		{"recipient.address", input.Recipient.Address},
		{"origin", input.Origin},
		{"destination", input.Destination},
	}
	for _, req := range required {
		if strings.TrimSpace(req.value) == "" {
			return apperrors.NewValidationError(req.field+" is required", map[string]any{"field": req.field})
		}
	}
	if strings.TrimSpace(input.TrackingCode) == "" {
		return apperrors.NewValidationError("tracking code is required", map[string]any{"field": "id"})
	}
	return nil
}

func trimContact(c ContactInfo) ContactInfo {
	return ContactInfo{
		Name:    strings.TrimSpace(c.Name),
		Address: strings.TrimSpace(c.Address),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
	}
}

// AppendStatus records a new status event and updates the derived current
// status. History is append-only; past events are never edited.
func (p *Package) AppendStatus(status Status, location string, now time.Time) error {
	if !status.Valid() {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": string(status)})
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return apperrors.NewValidationError("location is required", map[string]any{"field": "location"})
	}

	// Append-order timestamps are non-decreasing per package.
	if last := p.LatestEvent(); last != nil && now.Before(last.Timestamp) {
		now = last.Timestamp
	}

	p.StatusHistory = append(p.StatusHistory, StatusEvent{
		Status:    status,
		Location:  location,
		Timestamp: now,
	})
	p.CurrentStatus = status
	p.UpdatedAt = now
	return nil
}

// LatestEvent returns the chronologically latest history entry, or nil for an
// empty history.
func (p *Package) LatestEvent() *StatusEvent {
	if len(p.StatusHistory) == 0 {
		return nil
	}
	latest := &p.StatusHistory[0]
	for i := range p.StatusHistory {
		if !p.StatusHistory[i].Timestamp.Before(latest.Timestamp) {
			latest = &p.StatusHistory[i]
		}
	}
	return latest
}

// HistoryNewestFirst returns a copy of the history sorted descending by
// timestamp. Storage order stays insertion order; this is the display view.
func (p *Package) HistoryNewestFirst() []StatusEvent {
	view := make([]StatusEvent, len(p.StatusHistory))
	copy(view, p.StatusHistory)
	sort.SliceStable(view, func(i, j int) bool {
		return view[i].Timestamp.After(view[j].Timestamp)
	})
	return view
}
