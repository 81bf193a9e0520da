package models

import "time"

// PromoEventType says which bonus a time-boxed event raises.
type PromoEventType string

const (
	PromoEventSignupBonus   PromoEventType = "signup_bonus"
	PromoEventReferralBonus PromoEventType = "referral_bonus"
)

// PromoEvent is a time-boxed promotional event. An event is in effect when
// Active and now is within [StartsAt, EndsAt].
type PromoEvent struct {
	ID       string         `gorm:"primaryKey;type:uuid" json:"id"`
	Type     PromoEventType `gorm:"not null;index" json:"type"`
	Title    string         `gorm:"not null" json:"title"`
	Amount   int64          `gorm:"not null" json:"amount"`
	StartsAt time.Time      `gorm:"not null" json:"starts_at"`
	EndsAt   time.Time      `gorm:"index;not null" json:"ends_at"`
	Active   bool           `gorm:"not null;default:true;index" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
