package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/parcel-tracker/internal/api/dto"
	"github.com/spec-kit/parcel-tracker/internal/auth"
	"github.com/spec-kit/parcel-tracker/internal/domain"
	"github.com/spec-kit/parcel-tracker/internal/repository"
	"github.com/spec-kit/parcel-tracker/internal/service"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

// PackagesHandler manages the admin package endpoints.
type PackagesHandler struct {
	service *service.PackageService
	gate    *auth.SessionGate
}

// NewPackagesHandler constructs handler.
func NewPackagesHandler(packageService *service.PackageService, gate *auth.SessionGate) *PackagesHandler {
	return &PackagesHandler{service: packageService, gate: gate}
}

// Dashboard GET /admin.
func (h *PackagesHandler) Dashboard(c *fiber.Ctx) error {
	packages, err := h.service.ListPackages(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.PackageResponse, 0, len(packages))
	for i := range packages {
		items = append(items, dto.PackageFromDomain(&packages[i]))
	}
	return c.JSON(fiber.Map{"page": "dashboard", "data": items})
}

// List GET /admin/api/packages.
func (h *PackagesHandler) List(c *fiber.Ctx) error {
	packages, err := h.service.ListPackages(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.PackageResponse, 0, len(packages))
	for i := range packages {
		items = append(items, dto.PackageFromDomain(&packages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create POST /admin/api/packages.
func (h *PackagesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePackageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.PackageCreateInput{
		Sender:      dto.ContactToDomain(req.Sender),
		Recipient:   dto.ContactToDomain(req.Recipient),
		Origin:      req.Origin,
		Destination: req.Destination,
	}
	pkg, err := h.service.CreatePackage(c.UserContext(), h.adminID(c), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.PackageFromDomain(pkg)})
}

// Get GET /admin/api/packages/:code.
func (h *PackagesHandler) Get(c *fiber.Ctx) error {
	pkg, err := h.service.GetPackage(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	if pkg == nil {
		return apperrors.NewNotFound("package", map[string]any{"id": domain.NormalizeTrackingCode(c.Params("code"))})
	}
	return c.JSON(fiber.Map{"data": dto.PackageFromDomain(pkg)})
}

// Update PATCH /admin/api/packages/:code.
func (h *PackagesHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdatePackageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	update := repository.PackageUpdate{
		Origin:      req.Origin,
		Destination: req.Destination,
	}
	if req.Sender != nil {
		sender := dto.ContactToDomain(*req.Sender)
		update.Sender = &sender
	}
	if req.Recipient != nil {
		recipient := dto.ContactToDomain(*req.Recipient)
		update.Recipient = &recipient
	}

	pkg, err := h.service.UpdatePackage(c.UserContext(), c.Params("code"), update)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PackageFromDomain(pkg)})
}

// Delete DELETE /admin/api/packages/:code.
func (h *PackagesHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeletePackage(c.UserContext(), c.Params("code")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AdvanceStatus POST /admin/api/packages/:code/status.
func (h *PackagesHandler) AdvanceStatus(c *fiber.Ctx) error {
	var req dto.AdvanceStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	pkg, err := h.service.AdvanceStatus(c.UserContext(), c.Params("code"), domain.Status(req.Status), req.Location)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PackageFromDomain(pkg)})
}

// adminID attributes the action to the session's subject. The gate only
// checks presence, so a malformed credential falls back to "unknown".
func (h *PackagesHandler) adminID(c *fiber.Ctx) string {
	token := h.gate.SessionToken(c)
	if token == "" {
		return "unknown"
	}
	claims, err := auth.ExtractClaims(token)
	if err != nil || claims.AdminID == "" {
		return "unknown"
	}
	return claims.AdminID
}
