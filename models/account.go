package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is one user's value account. Balance is a cached projection of the
// ledger — it is only ever mutated through LedgerService, never directly.
type Account struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Nickname     string `json:"nickname"`
	Balance      int64  `gorm:"not null;default:0" json:"balance"`
	ReferralCode string `gorm:"uniqueIndex;not null" json:"referral_code"` // immutable once assigned
	Active       bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Merchant is an affiliated store that can consume redemption tokens and
// receive settlements.
type Merchant struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	Name   string `gorm:"not null" json:"name"`
	Active bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
