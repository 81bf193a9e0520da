package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity and roles the Gateway
// sets after session validation. Routes behind it require X-User-ID.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("[USER_CTX] X-User-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)
		return c.Next()
	}
}

// MerchantContextMiddleware extracts the merchant identity the Gateway sets
// for terminal requests. Merchant routes require X-Merchant-ID.
func MerchantContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		merchantID := c.Get("X-Merchant-ID")
		if merchantID == "" {
			log.Printf("[MERCHANT_CTX] X-Merchant-ID missing on merchant route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Merchant-ID — request must come through gateway with merchant context",
			})
		}

		c.Locals("merchant_id", merchantID)
		return c.Next()
	}
}

// RequireAdmin gates admin routes on the roles set by UserContextMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, role := range roles {
			if role == "admin" {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin role required"})
	}
}
