package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/parcel-tracker/internal/api/dto"
	"github.com/spec-kit/parcel-tracker/internal/route"
	apperrors "github.com/spec-kit/parcel-tracker/pkg/util"
)

// RoutesHandler exposes the AI route optimizer to the dashboard.
type RoutesHandler struct {
	optimizer *route.Optimizer
}

// NewRoutesHandler constructs handler.
func NewRoutesHandler(optimizer *route.Optimizer) *RoutesHandler {
	return &RoutesHandler{optimizer: optimizer}
}

// Optimize POST /admin/api/routes/optimize.
func (h *RoutesHandler) Optimize(c *fiber.Ctx) error {
	var req dto.OptimizeRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	text, err := h.optimizer.OptimizeRoute(c.UserContext(), route.OptimizeInput{
		Origin:      req.Origin,
		Destination: req.Destination,
		Waypoints:   req.Waypoints,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.OptimizeRouteResponse{Route: text}})
}
