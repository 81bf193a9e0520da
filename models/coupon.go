package models

import "time"

// CouponKind distinguishes merchant-funded coupons from promotional event
// coupons whose discount is partially subsidized.
type CouponKind string

const (
	CouponKindBasic CouponKind = "basic"
	CouponKindEvent CouponKind = "event"
)

// DiscountMode says how a coupon's discount is computed at redemption.
type DiscountMode string

const (
	DiscountModeAmount     DiscountMode = "amount"
	DiscountModePercentage DiscountMode = "percentage"
)

// Coupon is a redeemable discount right. Used is terminal: a used coupon can
// never be redeemed again, regardless of token replay.
type Coupon struct {
	ID            string       `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID     string       `gorm:"index;not null" json:"account_id"`
	Kind          CouponKind   `gorm:"not null" json:"kind"`
	DiscountMode  DiscountMode `gorm:"not null" json:"discount_mode"`
	DiscountValue int64        `gorm:"not null" json:"discount_value"` // amount in KRW, or percent 1..100
	Title         string       `json:"title"`
	ExpiresAt     time.Time    `gorm:"index;not null" json:"expires_at"`

	Used   bool       `gorm:"not null;default:false;index" json:"used"`
	UsedBy *string    `json:"used_by,omitempty"` // merchant id
	UsedAt *time.Time `json:"used_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
