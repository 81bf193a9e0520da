package services

import (
	"errors"
	"log"
	"time"

	"mileage-redemption-system/models"
	"mileage-redemption-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenService issues, verifies and consumes the signed QR payloads that
// mediate in-store redemption. Verify is strictly read-only; Consume is the
// only mutator and is enforced by a compare-and-set on the consumed flag.
type TokenService struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration
}

func NewTokenService(db *gorm.DB, secret string, ttl time.Duration) *TokenService {
	return &TokenService{DB: db, Secret: []byte(secret), TTL: ttl}
}

// TokenClaims binds the redemption intent into the signed payload.
type TokenClaims struct {
	AccountID string `json:"account_id"`
	Kind      string `json:"kind"`
	CouponID  string `json:"coupon_id,omitempty"`
	Nonce     string `json:"nonce"`
	jwt.RegisteredClaims
}

// VerifyReason is the machine-readable outcome of a verification.
type VerifyReason string

const (
	VerifyOK               VerifyReason = "ok"
	VerifyInvalidSignature VerifyReason = "invalid_signature"
	VerifyNotFound         VerifyReason = "not_found"
	VerifyExpired          VerifyReason = "expired"
	VerifyAlreadyUsed      VerifyReason = "already_used"
	VerifyInactiveAccount  VerifyReason = "inactive_account"
	VerifyCouponUsed       VerifyReason = "coupon_used"
)

// VerificationResult carries the bound context a merchant terminal shows
// before confirming the charge.
type VerificationResult struct {
	Valid   bool                    `json:"valid"`
	Reason  VerifyReason            `json:"reason"`
	Token   *models.RedemptionToken `json:"token,omitempty"`
	Account *models.Account         `json:"account,omitempty"`
	Coupon  *models.Coupon          `json:"coupon,omitempty"`
	Balance int64                   `json:"balance"`
}

// Issue signs a short-lived payload for the account and persists the token
// row in Issued state. couponID is required for coupon-kind tokens.
func (s *TokenService) Issue(accountID string, kind models.TokenKind, couponID string) (*models.RedemptionToken, error) {
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

	var couponRef *string
	if kind == models.TokenKindCoupon {
		var coupon models.Coupon
		if err := s.DB.Where("id = ? AND account_id = ?", couponID, accountID).First(&coupon).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCouponNotFound
			}
			return nil, err
		}
		if coupon.Used {
			return nil, ErrCouponUsed
		}
		if coupon.ExpiresAt.Before(time.Now()) {
			return nil, ErrCouponExpired
		}
		couponRef = &coupon.ID
	}

	tokenID := uuid.NewString()
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(s.TTL)

	claims := TokenClaims{
		AccountID: accountID,
		Kind:      string(kind),
		Nonce:     utils.NewNonce(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if couponRef != nil {
		claims.CouponID = *couponRef
	}

	payload, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return nil, err
	}

	token := &models.RedemptionToken{
		ID:        tokenID,
		AccountID: accountID,
		Kind:      kind,
		CouponID:  couponRef,
		Payload:   payload,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if err := s.DB.Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

// Verify checks a scanned payload without mutating anything, so a merchant
// can show the customer what a consume would do before confirming. Expiry is
// decided on the stored expires_at, not by re-deriving from the claims.
func (s *TokenService) Verify(payload string) (*VerificationResult, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(payload, claims, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
	if err != nil || claims.ID == "" {
		return &VerificationResult{Valid: false, Reason: VerifyInvalidSignature}, nil
	}

	var token models.RedemptionToken
	if err := s.DB.First(&token, "id = ?", claims.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &VerificationResult{Valid: false, Reason: VerifyNotFound}, nil
		}
		return nil, err
	}

	if token.Consumed {
		return &VerificationResult{Valid: false, Reason: VerifyAlreadyUsed, Token: &token}, nil
	}
	if time.Now().After(token.ExpiresAt) {
		return &VerificationResult{Valid: false, Reason: VerifyExpired, Token: &token}, nil
	}

	var account models.Account
	if err := s.DB.First(&account, "id = ?", token.AccountID).Error; err != nil {
		return nil, err
	}
	if !account.Active {
		return &VerificationResult{Valid: false, Reason: VerifyInactiveAccount, Token: &token}, nil
	}

	result := &VerificationResult{
		Valid:   true,
		Reason:  VerifyOK,
		Token:   &token,
		Account: &account,
		Balance: account.Balance,
	}

	if token.Kind == models.TokenKindCoupon && token.CouponID != nil {
		var coupon models.Coupon
		if err := s.DB.First(&coupon, "id = ?", *token.CouponID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &VerificationResult{Valid: false, Reason: VerifyNotFound, Token: &token}, nil
			}
			return nil, err
		}
		if coupon.Used {
			return &VerificationResult{Valid: false, Reason: VerifyCouponUsed, Token: &token}, nil
		}
		result.Coupon = &coupon
	}

	return result, nil
}

// ConsumeTx flips the consumed flag inside the caller's transaction. The
// WHERE consumed = false predicate decides the race: exactly one of N
// concurrent consumers gets RowsAffected = 1, the rest get ErrAlreadyConsumed.
func (s *TokenService) ConsumeTx(tx *gorm.DB, tokenID, merchantID string) error {
	now := time.Now()
	res := tx.Model(&models.RedemptionToken{}).
		Where("id = ? AND consumed = ?", tokenID, false).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_by": merchantID,
			"consumed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var token models.RedemptionToken
		if err := tx.First(&token, "id = ?", tokenID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}
		return ErrAlreadyConsumed
	}
	return nil
}

// PurgeExpired hard-deletes expired, never-consumed tokens older than the
// retention window. Consumed rows are kept for audit.
func (s *TokenService) PurgeExpired(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := s.DB.Where("consumed = ? AND expires_at < ?", false, cutoff).
		Delete(&models.RedemptionToken{})
	return res.RowsAffected, res.Error
}

// --- Fiber handlers ---

// IssueToken creates a redemption token for the authenticated user.
func (s *TokenService) IssueToken(c *fiber.Ctx) error {
	accountID := c.Locals("user_id").(string)

	var req struct {
		Kind     models.TokenKind `json:"kind"`
		CouponID string           `json:"coupon_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	switch req.Kind {
	case models.TokenKindMileage:
	case models.TokenKindCoupon:
		if req.CouponID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "coupon_id is required for coupon tokens"})
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind must be mileage or coupon"})
	}

	token, err := s.Issue(accountID, req.Kind, req.CouponID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrCouponNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrAccountInactive), errors.Is(err, ErrCouponUsed), errors.Is(err, ErrCouponExpired):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			log.Printf("DB Error issuing token for %s: %v", accountID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue token"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(token)
}

// GetTokenQR renders the token payload as a PNG QR image.
func (s *TokenService) GetTokenQR(c *fiber.Ctx) error {
	accountID := c.Locals("user_id").(string)
	tokenID := c.Params("id")
	if _, err := uuid.Parse(tokenID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid token ID"})
	}

	var token models.RedemptionToken
	if err := s.DB.Where("id = ? AND account_id = ?", tokenID, accountID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Token not found"})
		}
		log.Printf("DB Error fetching token %s: %v", tokenID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if token.Consumed || time.Now().After(token.ExpiresAt) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Token is no longer displayable"})
	}

	png, err := utils.GenerateQRCodePNG(token.Payload, 256)
	if err != nil {
		log.Printf("QR encode failed for token %s: %v", tokenID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to render QR"})
	}

	c.Set("Content-Type", "image/png")
	c.Set("Cache-Control", "no-store")
	return c.Send(png)
}
