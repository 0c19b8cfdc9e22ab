package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// AdminOnly guards operator routes with the X-Admin-Token header. An empty
// token disables the routes.
func AdminOnly(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		if subtle.ConstantTimeCompare([]byte(c.Get("X-Admin-Token")), []byte(token)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin token required"})
		}
		return c.Next()
	}
}
