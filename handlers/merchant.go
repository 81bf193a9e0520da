package handlers

import (
	"mileage-redemption-system/middleware"
	"mileage-redemption-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupMerchantRoutes wires the terminal surface: verify (read-only
// show-then-confirm) and consume (the sole mutator).
func SetupMerchantRoutes(app *fiber.App, redeem *services.RedeemService) {
	merchant := app.Group("/merchant", middleware.MerchantContextMiddleware())

	merchant.Post("/tokens/verify", redeem.VerifyToken)
	merchant.Post("/tokens/consume", redeem.ConsumeToken)
}
