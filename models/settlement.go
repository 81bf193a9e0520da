package models

import "time"

// SettlementKind classifies what redemption produced the receivable.
type SettlementKind string

const (
	SettlementKindMileageUse  SettlementKind = "mileage_use"
	SettlementKindBasicCoupon SettlementKind = "basic_coupon"
	SettlementKindEventCoupon SettlementKind = "event_coupon"
)

// SettlementStatus is the approval state machine:
// requested → approved → paid, or requested → rejected.
type SettlementStatus string

const (
	SettlementStatusRequested SettlementStatus = "requested"
	SettlementStatusApproved  SettlementStatus = "approved"
	SettlementStatusPaid      SettlementStatus = "paid"
	SettlementStatusRejected  SettlementStatus = "rejected"
)

// Settlement is a merchant receivable created by exactly one redemption,
// inside the same transaction that consumes the token. Net = Gross - Subsidy.
type Settlement struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	MerchantID string         `gorm:"index;not null" json:"merchant_id"`
	Kind       SettlementKind `gorm:"not null" json:"kind"`
	Gross      int64          `gorm:"not null" json:"gross"`
	Subsidy    int64          `gorm:"not null;default:0" json:"subsidy"`
	Net        int64          `gorm:"not null" json:"net"`
	TokenID    string         `gorm:"uniqueIndex;not null" json:"token_id"` // 1:1 with the redemption

	Status     SettlementStatus `gorm:"not null;default:'requested';index" json:"status"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
	RejectedAt *time.Time       `json:"rejected_at,omitempty"`
	PaidAt     *time.Time       `json:"paid_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
