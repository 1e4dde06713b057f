package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	// LoginPath is where unauthenticated dashboard visitors land.
	LoginPath = "/login"
	// AdminPrefix guards every dashboard route.
	AdminPrefix = "/admin"
)

// SessionGate is a coarse presence check on the session cookie. It does not
// decode or verify the credential; that is the identity provider's job.
type SessionGate struct {
	cookieName string
}

// NewSessionGate constructs the gate for the configured cookie name.
func NewSessionGate(cookieName string) *SessionGate {
	if cookieName == "" {
		cookieName = "session"
	}
	return &SessionGate{cookieName: cookieName}
}

// Handle redirects unauthenticated requests away from admin routes and
// authenticated requests away from the login page; everything else passes
// through unchanged.
func (g *SessionGate) Handle(c *fiber.Ctx) error {
	path := c.Path()
	hasSession := c.Cookies(g.cookieName) != ""

	switch {
	case isAdminPath(path) && !hasSession:
		return c.Redirect(LoginPath, fiber.StatusFound)
	case path == LoginPath && hasSession:
		return c.Redirect(AdminPrefix, fiber.StatusFound)
	}
	return c.Next()
}

// SessionToken returns the raw session credential, if present.
func (g *SessionGate) SessionToken(c *fiber.Ctx) string {
	return c.Cookies(g.cookieName)
}

func isAdminPath(path string) bool {
	return path == AdminPrefix || strings.HasPrefix(path, AdminPrefix+"/")
}

// SetSessionCookie issues the session cookie for ttl.
func SetSessionCookie(c *fiber.Ctx, name, token string, ttl time.Duration, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(c *fiber.Ctx, name string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
