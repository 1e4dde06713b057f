package dto

import (
	"time"

	"github.com/spec-kit/parcel-tracker/internal/domain"
)

// SessionLoginRequest exchanges an identity-provider token for a session cookie.
type SessionLoginRequest struct {
	IDToken string `json:"idToken"`
}

// SessionResponse acknowledges a session mutation.
type SessionResponse struct {
	Success bool `json:"success"`
}

// AdminRegisterRequest creates a dashboard operator account.
type AdminRegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// AdminResponse is the public view of an operator account.
type AdminResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AdminFromDomain converts an admin aggregate to its response shape.
func AdminFromDomain(admin *domain.Admin) AdminResponse {
	return AdminResponse{
		ID:          admin.ID,
		Email:       admin.Email,
		DisplayName: admin.DisplayName,
		CreatedAt:   admin.CreatedAt,
	}
}

// AdminLoginRequest authenticates against the built-in identity provider.
type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminLoginResponse carries the issued ID token.
type AdminLoginResponse struct {
	IDToken   string    `json:"idToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// OptimizeRouteRequest payload.
type OptimizeRouteRequest struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Waypoints   []string `json:"waypoints"`
}

// OptimizeRouteResponse payload.
type OptimizeRouteResponse struct {
	Route string `json:"route"`
}
