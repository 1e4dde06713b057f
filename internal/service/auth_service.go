package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/parcel-tracker/internal/auth"
	"github.com/spec-kit/parcel-tracker/internal/config"
	"github.com/spec-kit/parcel-tracker/internal/domain"
	"github.com/spec-kit/parcel-tracker/internal/repository"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

// AuthService is the built-in identity provider: it authenticates admins and
// issues the ID tokens the session endpoint exchanges for a cookie.
type AuthService struct {
	admins     repository.AdminRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AdminRepo repository.AdminRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		admins:     deps.AdminRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.IDTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// RegisterAdmin creates a dashboard operator account.
func (s *AuthService) RegisterAdmin(ctx context.Context, email, password, displayName string) (*domain.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}

	existing, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// Login authenticates an admin and returns a signed ID token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Admin, string, time.Time, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if admin == nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(admin.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(admin.ID, admin.Email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return admin, token, exp, nil
}

// TokenManager exposes the token manager for wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
