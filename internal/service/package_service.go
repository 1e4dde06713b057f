package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/domain"
	"github.com/spec-kit/parcel-tracker/internal/events"
	"github.com/spec-kit/parcel-tracker/internal/repository"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

// createRetries bounds tracking-code regeneration on key collision.
const createRetries = 3

// statusRetries bounds reload-and-retry after a concurrent status write.
const statusRetries = 2

// PackageService coordinates package workflows.
type PackageService struct {
	packages    repository.PackageRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	dispatcher  events.Dispatcher
	transitions domain.TransitionValidator
	logger      *zap.Logger
}

// PackageDependencies bundles collaborators for the package service.
type PackageDependencies struct {
	PackageRepo repository.PackageRepository
	Cache       *redis.Client
	CacheTTL    time.Duration
	Dispatcher  events.Dispatcher
	Transitions domain.TransitionValidator
	Logger      *zap.Logger
}

// PackageCreateInput describes a package creation payload.
type PackageCreateInput struct {
	Sender      domain.ContactInfo
	Recipient   domain.ContactInfo
	Origin      string
	Destination string
}

// NewPackageService constructs the service.
func NewPackageService(deps PackageDependencies) *PackageService {
	transitions := deps.Transitions
	if transitions == nil {
		transitions = domain.PermissiveTransitions{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PackageService{
		packages:    deps.PackageRepo,
		cache:       deps.Cache,
		cacheTTL:    deps.CacheTTL,
		dispatcher:  deps.Dispatcher,
		transitions: transitions,
		logger:      logger,
	}
}

// TrackingCacheKey names the cached public view of a package.
func TrackingCacheKey(trackingCode string) string {
	return "pkg:" + domain.NormalizeTrackingCode(trackingCode)
}

// CreatePackage creates a package for an admin, regenerating the tracking code
// on collision.
func (s *PackageService) CreatePackage(ctx context.Context, adminID string, input PackageCreateInput) (*domain.Package, error) {
	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		pkg, err := domain.NewPackage(domain.CreateInput{
			TrackingCode: generateTrackingCode(),
			AdminID:      adminID,
			Sender:       input.Sender,
			Recipient:    input.Recipient,
			Origin:       input.Origin,
			Destination:  input.Destination,
		}, time.Now())
		if err != nil {
			return nil, err
		}

		if err := s.packages.Create(ctx, pkg); err != nil {
			if apperrors.IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		s.publishEvent(ctx, events.Event{
			Type:         events.EventPackageCreated,
			TrackingCode: pkg.TrackingCode,
			AdminID:      adminID,
			Payload: events.PackageCreatedPayload{
				Origin:      pkg.Origin,
				Destination: pkg.Destination,
				Status:      pkg.CurrentStatus,
			},
		})
		return pkg, nil
	}
	return nil, lastErr
}

// GetPackage returns the admin view of a package, (nil, nil) when absent.
func (s *PackageService) GetPackage(ctx context.Context, trackingCode string) (*domain.Package, error) {
	return s.packages.Get(ctx, trackingCode)
}

// ListPackages returns every package ordered by tracking code.
func (s *PackageService) ListPackages(ctx context.Context) ([]domain.Package, error) {
	return s.packages.List(ctx)
}

// Track is the public read path: cache-first lookup by tracking code,
// case-insensitive, (nil, nil) when absent.
func (s *PackageService) Track(ctx context.Context, trackingCode string) (*domain.Package, error) {
	code := domain.NormalizeTrackingCode(trackingCode)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, TrackingCacheKey(code)).Bytes()
		if err == nil {
			var pkg domain.Package
			if err := json.Unmarshal(cached, &pkg); err == nil {
				return &pkg, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("tracking cache read failed", zap.String("tracking_code", code), zap.Error(err))
		}
	}

	pkg, err := s.packages.Get(ctx, code)
	if err != nil || pkg == nil {
		return pkg, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(pkg); err == nil {
			if err := s.cache.Set(ctx, TrackingCacheKey(code), encoded, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("tracking cache write failed", zap.String("tracking_code", code), zap.Error(err))
			}
		}
	}
	return pkg, nil
}

// UpdatePackage merges non-history fields. The tracking code and creating
// admin are immutable.
func (s *PackageService) UpdatePackage(ctx context.Context, trackingCode string, update repository.PackageUpdate) (*domain.Package, error) {
	code := domain.NormalizeTrackingCode(trackingCode)
	if err := validateUpdate(update); err != nil {
		return nil, err
	}

	pkg, err := s.packages.UpdateFields(ctx, code, update)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, apperrors.NewNotFound("package", map[string]any{"id": code})
	}

	s.publishEvent(ctx, events.Event{
		Type:         events.EventPackageUpdated,
		TrackingCode: pkg.TrackingCode,
		AdminID:      pkg.AdminID,
		Payload:      events.PackageUpdatedPayload{Fields: updatedFields(update)},
	})
	return pkg, nil
}

// DeletePackage hard-deletes a package. Deleting an absent code succeeds.
func (s *PackageService) DeletePackage(ctx context.Context, trackingCode string) error {
	code := domain.NormalizeTrackingCode(trackingCode)
	if err := s.packages.Delete(ctx, code); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:         events.EventPackageDeleted,
		TrackingCode: code,
		Payload:      events.PackageDeletedPayload{},
	})
	return nil
}

// AdvanceStatus appends a status event and recomputes the current status.
// A concurrent write surfaces as a version conflict and is retried once
// against the reloaded aggregate.
func (s *PackageService) AdvanceStatus(ctx context.Context, trackingCode string, status domain.Status, location string) (*domain.Package, error) {
	code := domain.NormalizeTrackingCode(trackingCode)

	var lastErr error
	for attempt := 0; attempt < statusRetries; attempt++ {
		pkg, err := s.packages.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		if pkg == nil {
			return nil, apperrors.NewNotFound("package", map[string]any{"id": code})
		}

		oldStatus := pkg.CurrentStatus
		if !s.transitions.Allowed(oldStatus, status) {
			return nil, apperrors.NewValidationError("status transition not allowed", map[string]any{
				"from": string(oldStatus),
				"to":   string(status),
			})
		}
		if err := pkg.AppendStatus(status, location, time.Now()); err != nil {
			return nil, err
		}

		if err := s.packages.SetStatus(ctx, code, pkg.StatusHistory, pkg.CurrentStatus, pkg.Version); err != nil {
			if apperrors.IsConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		pkg.Version++

		s.publishEvent(ctx, events.Event{
			Type:         events.EventPackageStatusAdvanced,
			TrackingCode: pkg.TrackingCode,
			AdminID:      pkg.AdminID,
			Payload: events.PackageStatusAdvancedPayload{
				OldStatus: oldStatus,
				NewStatus: status,
				Location:  strings.TrimSpace(location),
			},
		})
		return pkg, nil
	}
	return nil, lastErr
}

func validateUpdate(update repository.PackageUpdate) error {
	if update.Sender != nil {
		if strings.TrimSpace(update.Sender.Name) == "" || strings.TrimSpace(update.Sender.Address) == "" {
			return apperrors.NewValidationError("sender name and address are required", map[string]any{"field": "sender"})
		}
	}
	if update.Recipient != nil {
		if strings.TrimSpace(update.Recipient.Name) == "" || strings.TrimSpace(update.Recipient.Address) == "" {
			return apperrors.NewValidationError("recipient name and address are required", map[string]any{"field": "recipient"})
		}
	}
	if update.Origin != nil && strings.TrimSpace(*update.Origin) == "" {
		return apperrors.NewValidationError("origin cannot be empty", map[string]any{"field": "origin"})
	}
	if update.Destination != nil && strings.TrimSpace(*update.Destination) == "" {
		return apperrors.NewValidationError("destination cannot be empty", map[string]any{"field": "destination"})
	}
	return nil
}

func updatedFields(update repository.PackageUpdate) []string {
	var fields []string
	if update.Sender != nil {
		fields = append(fields, "sender")
	}
	if update.Recipient != nil {
		fields = append(fields, "recipient")
	}
	if update.Origin != nil {
		fields = append(fields, "origin")
	}
	if update.Destination != nil {
		fields = append(fields, "destination")
	}
	return fields
}

// generateTrackingCode derives a code from the current timestamp plus a random
// suffix. Collisions are rare but possible; Create treats them as retryable.
func generateTrackingCode() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("CS%d%s", time.Now().UnixMilli(), suffix)
}

func (s *PackageService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event", string(event.Type)),
			zap.String("tracking_code", event.TrackingCode),
			zap.Error(err))
	}
}
