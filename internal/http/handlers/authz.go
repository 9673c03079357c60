package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"adwatch/internal/services"
)

// RequireToken guards mutating API routes with the configured bearer
// token. With no token configured every request passes.
func RequireToken(guard *services.TokenGuard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(fiber.HeaderAuthorization)
		token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer"))
		if err := guard.Verify(token); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing api token",
			})
		}
		return c.Next()
	}
}
