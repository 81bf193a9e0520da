package handlers

import (
	"mileage-redemption-system/middleware"
	"mileage-redemption-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes wires the back-office surface: settlement approval,
// promotional events, coupon grants and ledger corrections.
func SetupAdminRoutes(app *fiber.App, settlements *services.SettlementService, events *services.EventRegistry, coupons *services.CouponService, ledger *services.LedgerService) {
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireAdmin())

	admin.Get("/settlements", settlements.ListSettlements)
	admin.Patch("/settlements/:id/approve", settlements.ApproveSettlement)
	admin.Patch("/settlements/:id/reject", settlements.RejectSettlement)
	admin.Patch("/settlements/:id/pay", settlements.PaySettlement)

	admin.Post("/events", events.CreateEvent)
	admin.Get("/events", events.ListEvents)
	admin.Patch("/events/:id/deactivate", events.DeactivateEvent)

	admin.Post("/accounts/:id/coupons", coupons.GrantCoupon)
	admin.Post("/accounts/:id/adjust", ledger.AdminAdjust)
}
