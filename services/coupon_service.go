package services

import (
	"errors"
	"log"
	"time"

	"mileage-redemption-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponService grants coupons and lists a user's wallet. Consumption goes
// through the redeem flow, never through this service.
type CouponService struct {
	DB *gorm.DB
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{DB: db}
}

// Grant issues a coupon to an account.
func (s *CouponService) Grant(accountID string, kind models.CouponKind, mode models.DiscountMode, value int64, title string, expiresAt time.Time) (*models.Coupon, error) {
	if value <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if mode == models.DiscountModePercentage && value > 100 {
		return nil, errors.New("percentage discount cannot exceed 100")
	}

	var account models.Account
	if err := s.DB.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if !account.Active {
		return nil, ErrAccountInactive
	}

	coupon := &models.Coupon{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Kind:          kind,
		DiscountMode:  mode,
		DiscountValue: value,
		Title:         title,
		ExpiresAt:     expiresAt,
	}
	if err := s.DB.Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

// --- Fiber handlers ---

// GrantCoupon issues a coupon to any account (Admin only).
func (s *CouponService) GrantCoupon(c *fiber.Ctx) error {
	accountID := c.Params("id")
	if _, err := uuid.Parse(accountID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}

	var req struct {
		Kind          models.CouponKind   `json:"kind"`
		DiscountMode  models.DiscountMode `json:"discount_mode"`
		DiscountValue int64               `json:"discount_value"`
		Title         string              `json:"title"`
		ExpiresAt     time.Time           `json:"expires_at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Kind != models.CouponKindBasic && req.Kind != models.CouponKindEvent {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be basic or event"})
	}
	if req.DiscountMode != models.DiscountModeAmount && req.DiscountMode != models.DiscountModePercentage {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discount_mode must be amount or percentage"})
	}
	if req.ExpiresAt.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expires_at is in the past"})
	}

	coupon, err := s.Grant(accountID, req.Kind, req.DiscountMode, req.DiscountValue, req.Title, req.ExpiresAt)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
		case errors.Is(err, ErrAccountInactive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Account is inactive"})
		case errors.Is(err, ErrNonPositiveAmount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "discount_value must be positive"})
		default:
			log.Printf("DB Error granting coupon to %s: %v", accountID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to grant coupon"})
		}
	}
	return c.Status(fiber.StatusCreated).JSON(coupon)
}

// ListMyCoupons lists the authenticated user's coupons, unused first.
func (s *CouponService) ListMyCoupons(c *fiber.Ctx) error {
	accountID := c.Locals("user_id").(string)

	var coupons []models.Coupon
	if err := s.DB.Where("account_id = ?", accountID).
		Order("used ASC, expires_at ASC").
		Find(&coupons).Error; err != nil {
		log.Printf("DB Error listing coupons for %s: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list coupons"})
	}
	return c.JSON(coupons)
}
