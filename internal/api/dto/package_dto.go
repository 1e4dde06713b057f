package dto

import (
	"time"

	"github.com/spec-kit/parcel-tracker/internal/domain"
)

// ContactPayload mirrors a contact-info record on the wire.
type ContactPayload struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// CreatePackageRequest payload.
type CreatePackageRequest struct {
	Sender      ContactPayload `json:"sender"`
	Recipient   ContactPayload `json:"recipient"`
	Origin      string         `json:"origin"`
	Destination string         `json:"destination"`
}

// UpdatePackageRequest carries a partial edit; absent fields are untouched.
type UpdatePackageRequest struct {
	Sender      *ContactPayload `json:"sender"`
	Recipient   *ContactPayload `json:"recipient"`
	Origin      *string         `json:"origin"`
	Destination *string         `json:"destination"`
}

// AdvanceStatusRequest payload.
type AdvanceStatusRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
}

// StatusEventResponse is one history entry, rendered newest first.
type StatusEventResponse struct {
	Status    string    `json:"status"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// PackageResponse is the admin view of a package.
type PackageResponse struct {
	ID            string                `json:"id"`
	AdminID       string                `json:"adminId"`
	Sender        ContactPayload        `json:"sender"`
	Recipient     ContactPayload        `json:"recipient"`
	Origin        string                `json:"origin"`
	Destination   string                `json:"destination"`
	CurrentStatus string                `json:"currentStatus"`
	StatusHistory []StatusEventResponse `json:"statusHistory"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// TrackingResponse is the public view: no admin id, no contact details.
type TrackingResponse struct {
	ID            string                `json:"id"`
	Origin        string                `json:"origin"`
	Destination   string                `json:"destination"`
	CurrentStatus string                `json:"currentStatus"`
	StatusHistory []StatusEventResponse `json:"statusHistory"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// ContactFromDomain converts a contact record.
func ContactFromDomain(c domain.ContactInfo) ContactPayload {
	return ContactPayload{Name: c.Name, Address: c.Address, Email: c.Email, Phone: c.Phone}
}

// ContactToDomain converts a contact payload.
func ContactToDomain(c ContactPayload) domain.ContactInfo {
	return domain.ContactInfo{Name: c.Name, Address: c.Address, Email: c.Email, Phone: c.Phone}
}

// HistoryFromDomain renders a package history newest first.
func HistoryFromDomain(pkg *domain.Package) []StatusEventResponse {
	events := pkg.HistoryNewestFirst()
	out := make([]StatusEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, StatusEventResponse{
			Status:    string(event.Status),
			Location:  event.Location,
			Timestamp: event.Timestamp,
		})
	}
	return out
}

// PackageFromDomain converts the aggregate to the admin response shape.
func PackageFromDomain(pkg *domain.Package) PackageResponse {
	return PackageResponse{
		ID:            pkg.TrackingCode,
		AdminID:       pkg.AdminID,
		Sender:        ContactFromDomain(pkg.Sender),
		Recipient:     ContactFromDomain(pkg.Recipient),
		Origin:        pkg.Origin,
		Destination:   pkg.Destination,
		CurrentStatus: string(pkg.CurrentStatus),
		StatusHistory: HistoryFromDomain(pkg),
		CreatedAt:     pkg.CreatedAt,
		UpdatedAt:     pkg.UpdatedAt,
	}
}

// TrackingFromDomain converts the aggregate to the public response shape.
func TrackingFromDomain(pkg *domain.Package) TrackingResponse {
	return TrackingResponse{
		ID:            pkg.TrackingCode,
		Origin:        pkg.Origin,
		Destination:   pkg.Destination,
		CurrentStatus: string(pkg.CurrentStatus),
		StatusHistory: HistoryFromDomain(pkg),
		UpdatedAt:     pkg.UpdatedAt,
	}
}
