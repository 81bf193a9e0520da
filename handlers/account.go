package handlers

import (
	"mileage-redemption-system/middleware"
	"mileage-redemption-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAccountRoutes wires the user-facing surface: signup, balance, ledger
// history, coupons, and token issuance with QR rendering.
func SetupAccountRoutes(app *fiber.App, signup *services.SignupService, ledger *services.LedgerService, tokens *services.TokenService, coupons *services.CouponService) {
	// Signup happens before a session exists, so it sits outside the user
	// context (but still behind the gateway token).
	app.Post("/signup", signup.HandleSignup)

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/accounts/me/balance", ledger.GetBalance)
	secured.Get("/accounts/me/ledger", ledger.GetLedger)
	secured.Get("/accounts/me/coupons", coupons.ListMyCoupons)

	secured.Post("/tokens", tokens.IssueToken)
	secured.Get("/tokens/:id/qr", tokens.GetTokenQR)
}
