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

// RedeemService is the merchant-side flow: verify a scanned token (read
// only), then consume it — token flip, value movement and settlement in one
// atomic transaction. A partial outcome is a bug, not an eventual state.
type RedeemService struct {
	DB          *gorm.DB
	Tokens      *TokenService
	Ledger      *LedgerService
	Settlements *SettlementService
	Notifier    *Notifier
}

func NewRedeemService(db *gorm.DB, tokens *TokenService, ledger *LedgerService, settlements *SettlementService, notifier *Notifier) *RedeemService {
	return &RedeemService{DB: db, Tokens: tokens, Ledger: ledger, Settlements: settlements, Notifier: notifier}
}

// ConsumeResult is what the merchant terminal shows after a confirmed
// redemption.
type ConsumeResult struct {
	Token      *models.RedemptionToken `json:"token"`
	Settlement *models.Settlement      `json:"settlement"`
	Coupon     *models.Coupon          `json:"coupon,omitempty"`
	// Discount actually applied to the purchase.
	Applied int64 `json:"applied"`
}

// Consume redeems a token at a merchant. amount is the mileage to spend for
// mileage tokens, or the order amount for percentage coupons; it is ignored
// for fixed-amount coupons.
func (s *RedeemService) Consume(tokenID, merchantID string, amount int64) (*ConsumeResult, error) {
	var merchant models.Merchant
	if err := s.DB.Where("id = ? AND active = ?", merchantID, true).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}

	var result ConsumeResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var token models.RedemptionToken
		if err := tx.First(&token, "id = ?", tokenID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		// Expiry is checked on the stored timestamp before the consume CAS,
		// so an expired token is rejected deterministically and never flips.
		if time.Now().After(token.ExpiresAt) {
			return ErrTokenExpired
		}

		if err := s.Tokens.ConsumeTx(tx, token.ID, merchantID); err != nil {
			return err
		}

		switch token.Kind {
		case models.TokenKindMileage:
			if amount <= 0 {
				return ErrNonPositiveAmount
			}
			if _, err := s.Ledger.DebitTx(tx, token.AccountID, amount, models.LedgerCategorySpend,
				"mileage spend at "+merchant.Name, "qr_redeem", token.ID); err != nil {
				return err
			}
			settlement := BuildSettlement(models.SettlementKindMileageUse, merchantID, token.ID, amount, s.Settlements.SubsidyRatio)
			if err := tx.Create(settlement).Error; err != nil {
				return err
			}
			result = ConsumeResult{Token: &token, Settlement: settlement, Applied: amount}

		case models.TokenKindCoupon:
			if token.CouponID == nil {
				return ErrCouponNotFound
			}
			var coupon models.Coupon
			if err := tx.First(&coupon, "id = ?", *token.CouponID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrCouponNotFound
				}
				return err
			}
			if time.Now().After(coupon.ExpiresAt) {
				return ErrCouponExpired
			}

			// Terminal used flag, same CAS shape as the token. Guards the
			// token-replay-onto-fresh-token case.
			now := time.Now()
			res := tx.Model(&models.Coupon{}).
				Where("id = ? AND used = ?", coupon.ID, false).
				Updates(map[string]interface{}{"used": true, "used_by": merchantID, "used_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrCouponUsed
			}

			gross, err := CouponGross(&coupon, amount)
			if err != nil {
				return err
			}

			kind := models.SettlementKindBasicCoupon
			if coupon.Kind == models.CouponKindEvent {
				kind = models.SettlementKindEventCoupon
			}
			settlement := BuildSettlement(kind, merchantID, token.ID, gross, s.Settlements.SubsidyRatio)
			if err := tx.Create(settlement).Error; err != nil {
				return err
			}

			coupon.Used = true
			coupon.UsedBy = &merchantID
			coupon.UsedAt = &now
			result = ConsumeResult{Token: &token, Settlement: settlement, Coupon: &coupon, Applied: gross}

		default:
			return errors.New("unknown token kind")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Emit("redemption.completed", fiber.Map{
		"token_id":      result.Token.ID,
		"merchant_id":   merchantID,
		"settlement_id": result.Settlement.ID,
		"applied":       result.Applied,
	})
	return &result, nil
}

// --- Fiber handlers ---

// VerifyToken handles POST /merchant/tokens/verify. Read-only: verification
// failures come back as reason codes in a 200 body so the terminal flow
// never aborts on a bad scan.
func (s *RedeemService) VerifyToken(c *fiber.Ctx) error {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := c.BodyParser(&req); err != nil || req.Payload == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payload is required"})
	}

	result, err := s.Tokens.Verify(req.Payload)
	if err != nil {
		log.Printf("Verify failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Verification unavailable, retry"})
	}
	return c.JSON(result)
}

// ConsumeToken handles POST /merchant/tokens/consume. The response
// distinguishes "someone already redeemed this" from "this token is invalid".
func (s *RedeemService) ConsumeToken(c *fiber.Ctx) error {
	merchantID, _ := c.Locals("merchant_id").(string)
	if merchantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing merchant context"})
	}

	var req struct {
		TokenID string `json:"token_id"`
		Amount  int64  `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if _, err := uuid.Parse(req.TokenID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid token ID"})
	}

	result, err := s.Consume(req.TokenID, merchantID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyConsumed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Token already consumed", "code": "already_consumed"})
		case errors.Is(err, ErrCouponUsed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Coupon already used", "code": "coupon_used"})
		case errors.Is(err, ErrTokenExpired), errors.Is(err, ErrCouponExpired):
			return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error(), "code": "expired"})
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrCouponNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error(), "code": "not_found"})
		case errors.Is(err, ErrInsufficientBalance):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Insufficient balance", "code": "insufficient_balance"})
		case errors.Is(err, ErrAccountInactive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Account inactive", "code": "inactive_account"})
		case errors.Is(err, ErrMerchantNotFound):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unknown or inactive merchant"})
		case errors.Is(err, ErrNonPositiveAmount):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be positive"})
		default:
			log.Printf("Consume failed for token %s at merchant %s: %v", req.TokenID, merchantID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Redemption failed, retry"})
		}
	}

	return c.JSON(result)
}
