package services

import (
	"errors"
	"log"
	"time"

	"mileage-redemption-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementService turns redemptions into merchant receivables and drives
// the requested → approved → paid (or rejected) state machine.
type SettlementService struct {
	DB       *gorm.DB
	Notifier *Notifier
	// Government share of an event coupon discount, percent 0..100.
	SubsidyRatio int
}

func NewSettlementService(db *gorm.DB, notifier *Notifier, subsidyRatio int) *SettlementService {
	return &SettlementService{DB: db, Notifier: notifier, SubsidyRatio: subsidyRatio}
}

// CouponGross computes the discount a coupon grants against an order.
// Percentage coupons need the order amount; amount coupons ignore it.
func CouponGross(coupon *models.Coupon, orderAmount int64) (int64, error) {
	switch coupon.DiscountMode {
	case models.DiscountModeAmount:
		return coupon.DiscountValue, nil
	case models.DiscountModePercentage:
		if orderAmount <= 0 {
			return 0, ErrNonPositiveAmount
		}
		return orderAmount * coupon.DiscountValue / 100, nil
	default:
		return 0, errors.New("unknown discount mode")
	}
}

// BuildSettlement computes the receivable for one redemption. Only event
// coupons carry a subsidy: subsidy = floor(gross * ratio / 100), the
// merchant is owed the remainder.
func BuildSettlement(kind models.SettlementKind, merchantID, tokenID string, gross int64, subsidyRatio int) *models.Settlement {
	var subsidy int64
	if kind == models.SettlementKindEventCoupon {
		subsidy = gross * int64(subsidyRatio) / 100
	}
	return &models.Settlement{
		ID:         uuid.NewString(),
		MerchantID: merchantID,
		Kind:       kind,
		Gross:      gross,
		Subsidy:    subsidy,
		Net:        gross - subsidy,
		TokenID:    tokenID,
		Status:     models.SettlementStatusRequested,
	}
}

// Approve moves requested → approved. Re-approving an approved settlement is
// a no-op; any other state is an out-of-order transition.
func (s *SettlementService) Approve(settlementID string) (*models.Settlement, error) {
	settlement, err := s.transition(settlementID, models.SettlementStatusApproved, models.SettlementStatusRequested)
	if err != nil {
		return nil, err
	}
	s.Notifier.Emit("settlement.approved", fiber.Map{
		"settlement_id": settlement.ID,
		"merchant_id":   settlement.MerchantID,
		"net":           settlement.Net,
	})
	return settlement, nil
}

// Reject moves requested → rejected, idempotently.
func (s *SettlementService) Reject(settlementID string) (*models.Settlement, error) {
	return s.transition(settlementID, models.SettlementStatusRejected, models.SettlementStatusRequested)
}

// MarkPaid moves approved → paid, idempotently. Paying a settlement that was
// never approved is rejected as out-of-order.
func (s *SettlementService) MarkPaid(settlementID string) (*models.Settlement, error) {
	return s.transition(settlementID, models.SettlementStatusPaid, models.SettlementStatusApproved)
}

// transition applies one status change under a row lock so a retried call
// after a timeout observes the already-applied state and no-ops instead of
// double-applying.
func (s *SettlementService) transition(settlementID string, target, from models.SettlementStatus) (*models.Settlement, error) {
	var settlement models.Settlement
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&settlement, "id = ?", settlementID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSettlementNotFound
			}
			return err
		}

		if settlement.Status == target {
			return nil // retried call, nothing to do
		}
		if settlement.Status != from {
			return ErrInvalidTransition
		}

		now := time.Now()
		settlement.Status = target
		switch target {
		case models.SettlementStatusApproved:
			settlement.ApprovedAt = &now
		case models.SettlementStatusRejected:
			settlement.RejectedAt = &now
		case models.SettlementStatusPaid:
			settlement.PaidAt = &now
		}
		return tx.Save(&settlement).Error
	})
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}

// --- Fiber handlers ---

// ListSettlements lists settlements, optionally filtered by status or
// merchant (Admin only).
func (s *SettlementService) ListSettlements(c *fiber.Ctx) error {
	query := s.DB.Model(&models.Settlement{}).Order("created_at DESC").Limit(200)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if merchantID := c.Query("merchant_id"); merchantID != "" {
		query = query.Where("merchant_id = ?", merchantID)
	}

	var settlements []models.Settlement
	if err := query.Find(&settlements).Error; err != nil {
		log.Printf("DB Error listing settlements: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list settlements"})
	}
	return c.JSON(settlements)
}

// ApproveSettlement handles PATCH /admin/settlements/:id/approve.
func (s *SettlementService) ApproveSettlement(c *fiber.Ctx) error {
	return s.handleTransition(c, s.Approve)
}

// RejectSettlement handles PATCH /admin/settlements/:id/reject.
func (s *SettlementService) RejectSettlement(c *fiber.Ctx) error {
	return s.handleTransition(c, s.Reject)
}

// PaySettlement handles PATCH /admin/settlements/:id/pay.
func (s *SettlementService) PaySettlement(c *fiber.Ctx) error {
	return s.handleTransition(c, s.MarkPaid)
}

func (s *SettlementService) handleTransition(c *fiber.Ctx, apply func(string) (*models.Settlement, error)) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid settlement ID"})
	}

	settlement, err := apply(id)
	if err != nil {
		switch {
		case errors.Is(err, ErrSettlementNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Settlement not found"})
		case errors.Is(err, ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Out-of-order settlement transition"})
		default:
			log.Printf("DB Error transitioning settlement %s: %v", id, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update settlement"})
		}
	}
	return c.JSON(settlement)
}
