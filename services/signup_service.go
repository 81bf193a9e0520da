package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"mileage-redemption-system/config"
	"mileage-redemption-system/models"
	"mileage-redemption-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignupService composes the risk gate, the bonus engine and the ledger into
// the signup flow. All value grants for one signup happen in one transaction.
type SignupService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Scorer   *RiskScorer
	Events   *EventRegistry
	Notifier *Notifier
	Cfg      config.Config

	// GenerateCode produces the new account's referral code. A field so the
	// self-referral guard is deterministic under test.
	GenerateCode func() string
}

func NewSignupService(db *gorm.DB, ledger *LedgerService, scorer *RiskScorer, events *EventRegistry, notifier *Notifier, cfg config.Config) *SignupService {
	return &SignupService{
		DB: db, Ledger: ledger, Scorer: scorer, Events: events, Notifier: notifier, Cfg: cfg,
		GenerateCode: utils.NewReferralCode,
	}
}

// SignupRequest is one signup attempt with its risk context. The IP
// classification flags come from the upstream scorer plugin at the gateway.
type SignupRequest struct {
	Email             string
	Nickname          string
	ReferralCode      string
	IP                string
	UserAgent         string
	DeviceFingerprint string
	IPAnonymized      bool
	IPBlacklisted     bool
}

// SignupResult reports what the signup produced. ReferralSkipReason is set
// when a supplied code did not yield referral benefits but the signup itself
// went through (policy: a bad or rate-limited referral degrades to a plain
// signup rather than failing it).
type SignupResult struct {
	Account            *models.Account `json:"account"`
	Assessment         RiskAssessment  `json:"risk"`
	GrantedTotal       int64           `json:"granted_total"`
	ReferralApplied    bool            `json:"referral_applied"`
	ReferralSkipReason string          `json:"referral_skip_reason,omitempty"`
}

// Signup runs the full flow: score → gate → account creation → bonus plan →
// ledger credits → referral link → audit row → notification.
func (s *SignupService) Signup(req SignupRequest) (*SignupResult, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.ReferralCode = strings.TrimSpace(strings.ToUpper(req.ReferralCode))
	if req.Email == "" {
		return nil, errors.New("email is required")
	}

	// Risk gate. A scorer storage failure fails open: the signup proceeds
	// with a zero score and the degradation recorded for audit.
	signals := RiskSignals{
		IP:                req.IP,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: req.DeviceFingerprint,
		IPAnonymized:      req.IPAnonymized,
		IPBlacklisted:     req.IPBlacklisted,
	}
	var assessment RiskAssessment
	collected, err := s.Scorer.CollectSignals(signals)
	if err != nil {
		log.Printf("[Signup] risk signal collection unavailable, failing open: %v", err)
		assessment = RiskAssessment{FailedOpen: true, Factors: []string{"scorer_unavailable"}}
	} else {
		assessment = s.Scorer.Score(collected)
	}

	if assessment.Blocked {
		s.recordAttempt(req, assessment, models.AttemptOutcomeBlocked)
		return &SignupResult{Assessment: assessment}, ErrBlockedByRisk
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Nickname:     req.Nickname,
		ReferralCode: s.GenerateCode(),
		Active:       true,
	}

	// Rule 5: the supplied code matching the code just generated for this
	// account means someone is replaying their own code. Rejected outright,
	// before any ledger entry exists.
	if req.ReferralCode != "" && req.ReferralCode == account.ReferralCode {
		s.recordAttempt(req, assessment, models.AttemptOutcomeFailed)
		return nil, ErrSelfReferral
	}

	referrer, skipReason, err := s.resolveReferral(req.ReferralCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	input := BonusInput{
		BaseSignupBonus:     s.Cfg.SignupBonusDefault,
		ReferralSignupBonus: s.Cfg.SignupBonusReferral,
		ReferrerReward:      s.Cfg.ReferralReward,
		HasReferral:         referrer != nil,
	}
	if event, err := s.Events.ActiveEvent(models.PromoEventSignupBonus, now); err != nil {
		return nil, err
	} else if event != nil {
		input.SignupEventAmount = event.Amount
		input.SignupEventID = event.ID
	}
	if referrer != nil {
		if event, err := s.Events.ActiveEvent(models.PromoEventReferralBonus, now); err != nil {
			return nil, err
		} else if event != nil {
			input.ReferralEventAmount = event.Amount
			input.ReferralEventID = event.ID
		}
	}

	plan := ComputeSignupBonus(input)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}

		for _, credit := range plan.Referee {
			refID := credit.RefID
			if refID == "" {
				if credit.RefType == "referral" && referrer != nil {
					refID = referrer.ID
				} else {
					refID = account.ID
				}
			}
			if _, err := s.Ledger.CreditTx(tx, account.ID, credit.Amount, credit.Category, credit.Description, credit.RefType, refID); err != nil {
				return err
			}
		}

		if referrer != nil {
			var referrerTotal int64
			for _, credit := range plan.Referrer {
				refID := credit.RefID
				if refID == "" {
					refID = account.ID
				}
				if _, err := s.Ledger.CreditTx(tx, referrer.ID, credit.Amount, credit.Category, credit.Description, credit.RefType, refID); err != nil {
					return err
				}
				referrerTotal += credit.Amount
			}

			link := &models.ReferralLink{
				ID:             uuid.NewString(),
				ReferrerID:     referrer.ID,
				RefereeID:      account.ID,
				CodeUsed:       req.ReferralCode,
				ReferrerReward: referrerTotal,
				RefereeBonus:   plan.RefereeTotal(),
				Status:         "completed",
			}
			if err := tx.Create(link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.recordAttempt(req, assessment, models.AttemptOutcomeFailed)
		return nil, err
	}

	s.recordAttempt(req, assessment, models.AttemptOutcomeSuccess)

	if referrer != nil {
		s.Notifier.Emit("referral.completed", fiber.Map{
			"referrer_id": referrer.ID,
			"referee_id":  account.ID,
			"code":        req.ReferralCode,
		})
	}

	return &SignupResult{
		Account:            account,
		Assessment:         assessment,
		GrantedTotal:       plan.RefereeTotal(),
		ReferralApplied:    referrer != nil,
		ReferralSkipReason: skipReason,
	}, nil
}

// resolveReferral maps a supplied code to a referrer, or to a skip reason
// when the signup should proceed without referral benefits.
func (s *SignupService) resolveReferral(code string) (*models.Account, string, error) {
	if code == "" {
		return nil, "", nil
	}

	var referrer models.Account
	if err := s.DB.Where("referral_code = ? AND active = ?", code, true).First(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "invalid_code", nil
		}
		return nil, "", err
	}

	// Rolling 24h window over completed referrals, counted in storage so the
	// limit holds across service instances.
	since := time.Now().Add(-24 * time.Hour)
	var recent int64
	if err := s.DB.Model(&models.ReferralLink{}).
		Where("referrer_id = ? AND created_at >= ?", referrer.ID, since).
		Count(&recent).Error; err != nil {
		return nil, "", err
	}
	if recent >= int64(s.Cfg.ReferralDailyLimit) {
		log.Printf("[Signup] referral rate limit hit for referrer %s (%d in 24h)", referrer.ID, recent)
		return nil, "rate_limited", nil
	}

	return &referrer, "", nil
}

// recordAttempt writes the audit row. The audit sink is append-only and
// best-effort: a write failure is logged, never surfaced to the caller.
func (s *SignupService) recordAttempt(req SignupRequest, assessment RiskAssessment, outcome models.AttemptOutcome) {
	attempt := &models.SignupAttempt{
		ID:                uuid.NewString(),
		Email:             req.Email,
		IP:                req.IP,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: req.DeviceFingerprint,
		RiskScore:         assessment.Score,
		RiskFactors:       assessment.FactorString(),
		Outcome:           outcome,
	}
	if assessment.FailedOpen {
		attempt.RiskFactors = "failed_open:" + attempt.RiskFactors
	}
	if err := s.DB.Create(attempt).Error; err != nil {
		log.Printf("[Signup] failed to write signup attempt audit row: %v", err)
	}
}

// --- Fiber handlers ---

// HandleSignup handles POST /signup.
func (s *SignupService) HandleSignup(c *fiber.Ctx) error {
	var req struct {
		Email             string `json:"email"`
		Nickname          string `json:"nickname"`
		ReferralCode      string `json:"referral_code"`
		DeviceFingerprint string `json:"device_fingerprint"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email is required"})
	}

	result, err := s.Signup(SignupRequest{
		Email:             req.Email,
		Nickname:          req.Nickname,
		ReferralCode:      req.ReferralCode,
		IP:                c.IP(),
		UserAgent:         c.Get("User-Agent"),
		DeviceFingerprint: req.DeviceFingerprint,
		// Set by the gateway's IP classification plugin.
		IPAnonymized:  c.Get("X-Risk-IP-Anonymized") == "true",
		IPBlacklisted: c.Get("X-Risk-IP-Blacklisted") == "true",
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBlockedByRisk):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Signup blocked",
				"score": result.Assessment.Score,
			})
		case errors.Is(err, ErrSelfReferral):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Cannot use your own referral code"})
		case isUniqueViolation(err):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Email already registered"})
		default:
			log.Printf("Signup failed for %s: %v", req.Email, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Signup failed"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
