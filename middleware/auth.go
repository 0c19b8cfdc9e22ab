package middleware

import (
	"log/slog"
	"strings"

	"browsebux-economy/models"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// UserContextMiddleware reads the identity the gateway forwards in
// X-User-* headers.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			slog.Warn("X-User-ID missing on secured route", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		SetIdentity(c, models.Identity{
			UID:       userID,
			Name:      c.Get("X-User-Name"),
			Email:     c.Get("X-User-Email"),
			AvatarURL: c.Get("X-User-Avatar"),
		})
		return c.Next()
	}
}

// SetIdentity stores the authenticated identity for handlers.
func SetIdentity(c *fiber.Ctx, id models.Identity) {
	c.Locals(identityKey, id)
	c.Locals("user_id", id.UID)
}

// GetIdentity returns the identity stored by one of the auth middlewares.
func GetIdentity(c *fiber.Ctx) (models.Identity, bool) {
	id, ok := c.Locals(identityKey).(models.Identity)
	if !ok || id.UID == "" {
		return models.Identity{}, false
	}
	return id, true
}
