package models

import "time"

// TokenKind says what a redemption token spends when consumed.
type TokenKind string

const (
	TokenKindMileage TokenKind = "mileage"
	TokenKindCoupon  TokenKind = "coupon"
)

// RedemptionToken is one issued QR payload. Issued → Consumed exactly once,
// or Issued → expired (by stored ExpiresAt). Rows are kept after expiry for
// audit and replay detection; a retention sweep deletes old unconsumed ones.
type RedemptionToken struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID string    `gorm:"index;not null" json:"account_id"`
	Kind      TokenKind `gorm:"not null" json:"kind"`
	CouponID  *string   `gorm:"index" json:"coupon_id,omitempty"` // set for coupon kind
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	IssuedAt  time.Time `gorm:"not null" json:"issued_at"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`

	Consumed   bool       `gorm:"not null;default:false;index" json:"consumed"`
	ConsumedBy *string    `json:"consumed_by,omitempty"` // merchant id
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
