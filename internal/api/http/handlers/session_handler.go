package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/api/dto"
	"github.com/spec-kit/parcel-tracker/internal/auth"
	"github.com/spec-kit/parcel-tracker/internal/config"
)

// SessionHandler issues and clears the admin session cookie. The cookie value
// is the identity provider's token, treated as opaque here.
type SessionHandler struct {
	session config.SessionConfig
	secure  bool
	logger  *zap.Logger
}

// NewSessionHandler constructs handler.
func NewSessionHandler(session config.SessionConfig, secure bool, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{session: session, secure: secure, logger: logger}
}

// Login POST /api/session/login.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.SessionLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "idToken required"})
	}
	if strings.TrimSpace(req.IDToken) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "idToken required"})
	}

	// The credential is not verified here; claims are decoded, when possible,
	// purely for attribution logging.
	if claims, err := auth.ExtractClaims(req.IDToken); err == nil {
		h.logger.Info("session opened",
			zap.String("admin_id", claims.AdminID),
			zap.String("email", claims.Email))
	}

	auth.SetSessionCookie(c, h.session.CookieName, req.IDToken, h.session.TTL(), h.secure)
	return c.JSON(dto.SessionResponse{Success: true})
}

// Logout POST /api/session/logout.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	auth.ClearSessionCookie(c, h.session.CookieName, h.secure)
	return c.JSON(dto.SessionResponse{Success: true})
}

// LoginPage GET /login. The rendered form belongs to the presentation layer;
// this returns the page shell data.
func (h *SessionHandler) LoginPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"page": "login"})
}
