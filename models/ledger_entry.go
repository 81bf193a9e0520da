package models

import "time"

// LedgerCategory classifies a ledger entry.
type LedgerCategory string

const (
	LedgerCategoryEarn        LedgerCategory = "earn"
	LedgerCategorySpend       LedgerCategory = "spend"
	LedgerCategoryAdminAdjust LedgerCategory = "admin_adjust"
)

// LedgerEntry is one immutable value movement on an account. Positive amount
// is a credit, negative a debit. Entries are append-only: a correction is a
// new offsetting entry, never an update.
type LedgerEntry struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID   string         `gorm:"index;not null" json:"account_id"`
	Amount      int64          `gorm:"not null" json:"amount"`
	Category    LedgerCategory `gorm:"not null" json:"category"`
	Description string         `gorm:"type:text" json:"description"`
	RefType     string         `gorm:"index" json:"ref_type"` // signup | referral | event | qr_redeem | admin
	RefID       string         `gorm:"index" json:"ref_id"`
	CreatedAt   time.Time      `json:"created_at"`
}
