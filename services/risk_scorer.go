package services

import (
	"strings"
	"time"

	"mileage-redemption-system/models"

	"gorm.io/gorm"
)

// RiskWeights are the tunable per-signal scores. No single signal should
// reach the block threshold on its own — the gate is additive.
type RiskWeights struct {
	AnonymizedIP   int // known VPN / Tor / datacenter exit
	BlacklistedIP  int
	BotUserAgent   int // missing or bot-like user agent
	RepeatIPLow    int // >= 3 attempts from the IP in 24h
	RepeatIPHigh   int // >= 5 attempts, added on top of RepeatIPLow
	BlockedDevice  int // device fingerprint seen on a blocked attempt
	BlockThreshold int // score at or above this blocks the action
}

// DefaultRiskWeights match the shipped tuning; the threshold is overridden
// from config.
var DefaultRiskWeights = RiskWeights{
	AnonymizedIP:   40,
	BlacklistedIP:  50,
	BotUserAgent:   25,
	RepeatIPLow:    20,
	RepeatIPHigh:   30,
	BlockedDevice:  50,
	BlockThreshold: 70,
}

// RiskSignals are the observed facts about one attempt. IP classification
// flags come from an upstream scorer plugin; the counters come from the
// signup_attempts audit table.
type RiskSignals struct {
	IP                string
	UserAgent         string
	DeviceFingerprint string

	IPAnonymized  bool // VPN / Tor / datacenter
	IPBlacklisted bool

	AttemptsFromIP24h   int
	DeviceBlockedBefore bool
}

// RiskAssessment is the gate's verdict for one attempt.
type RiskAssessment struct {
	Score      int      `json:"score"`
	Factors    []string `json:"factors"`
	Blocked    bool     `json:"blocked"`
	FailedOpen bool     `json:"failed_open"`
}

// FactorString joins the contributing factors for the audit row.
func (a RiskAssessment) FactorString() string {
	return strings.Join(a.Factors, ",")
}

// RiskScorer computes a 0–100 score from weighted, independent signals.
type RiskScorer struct {
	DB      *gorm.DB
	Weights RiskWeights
}

func NewRiskScorer(db *gorm.DB, weights RiskWeights) *RiskScorer {
	return &RiskScorer{DB: db, Weights: weights}
}

// Score is pure: same signals, same verdict.
func (r *RiskScorer) Score(signals RiskSignals) RiskAssessment {
	var assessment RiskAssessment

	add := func(points int, factor string) {
		assessment.Score += points
		assessment.Factors = append(assessment.Factors, factor)
	}

	if signals.IPBlacklisted {
		add(r.Weights.BlacklistedIP, "blacklisted_ip")
	} else if signals.IPAnonymized {
		add(r.Weights.AnonymizedIP, "anonymized_ip")
	}

	if isBotLikeUserAgent(signals.UserAgent) {
		add(r.Weights.BotUserAgent, "bot_user_agent")
	}

	if signals.AttemptsFromIP24h >= 3 {
		add(r.Weights.RepeatIPLow, "repeat_ip")
	}
	if signals.AttemptsFromIP24h >= 5 {
		add(r.Weights.RepeatIPHigh, "repeat_ip_heavy")
	}

	if signals.DeviceBlockedBefore {
		add(r.Weights.BlockedDevice, "blocked_device")
	}

	if assessment.Score > 100 {
		assessment.Score = 100
	}
	assessment.Blocked = assessment.Score >= r.Weights.BlockThreshold
	return assessment
}

// CollectSignals fills the history-derived counters for an attempt. The
// counters live in storage, not in process memory, so the limits hold when
// several instances run behind the gateway.
func (r *RiskScorer) CollectSignals(signals RiskSignals) (RiskSignals, error) {
	since := time.Now().Add(-24 * time.Hour)

	var ipAttempts int64
	if err := r.DB.Model(&models.SignupAttempt{}).
		Where("ip = ? AND created_at >= ?", signals.IP, since).
		Count(&ipAttempts).Error; err != nil {
		return signals, err
	}
	signals.AttemptsFromIP24h = int(ipAttempts)

	if signals.DeviceFingerprint != "" {
		var blockedDevice int64
		if err := r.DB.Model(&models.SignupAttempt{}).
			Where("device_fingerprint = ? AND outcome = ?", signals.DeviceFingerprint, models.AttemptOutcomeBlocked).
			Count(&blockedDevice).Error; err != nil {
			return signals, err
		}
		signals.DeviceBlockedBefore = blockedDevice > 0
	}

	return signals, nil
}

var botUserAgentMarkers = []string{"bot", "curl", "wget", "python-requests", "scrapy", "headless"}

func isBotLikeUserAgent(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	lower := strings.ToLower(ua)
	for _, marker := range botUserAgentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
