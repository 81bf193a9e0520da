package models

import "time"

// ReferralLink records one completed referral. A user can be referred at
// most once (unique referee); a referrer may have many, bounded by the
// rolling 24h rate limit checked at signup time.
type ReferralLink struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`
	RefereeID  string `gorm:"uniqueIndex;not null" json:"referee_id"`
	CodeUsed   string `gorm:"not null" json:"code_used"`

	ReferrerReward int64  `gorm:"not null" json:"referrer_reward"`
	RefereeBonus   int64  `gorm:"not null" json:"referee_bonus"`
	Status         string `gorm:"not null;default:'completed'" json:"status"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
