package models

import "time"

// AttemptOutcome is the terminal outcome of one signup attempt.
type AttemptOutcome string

const (
	AttemptOutcomePending AttemptOutcome = "pending"
	AttemptOutcomeSuccess AttemptOutcome = "success"
	AttemptOutcomeFailed  AttemptOutcome = "failed"
	AttemptOutcomeBlocked AttemptOutcome = "blocked"
)

// SignupAttempt is the append-only audit row for the risk gate. The core
// writes these and never reads them back, except to count recent attempts
// per IP / device when scoring the next attempt.
type SignupAttempt struct {
	ID                string         `gorm:"primaryKey;type:uuid" json:"id"`
	Email             string         `gorm:"index" json:"email"`
	IP                string         `gorm:"index" json:"ip"`
	UserAgent         string         `json:"user_agent"`
	DeviceFingerprint string         `gorm:"index" json:"device_fingerprint"`
	RiskScore         int            `gorm:"not null" json:"risk_score"`
	RiskFactors       string         `gorm:"type:text" json:"risk_factors"` // comma-joined factor labels
	Outcome           AttemptOutcome `gorm:"not null;index" json:"outcome"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
}
