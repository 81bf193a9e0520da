package services

import (
	"fmt"

	"mileage-redemption-system/models"
)

// BonusInput carries everything the bonus computation needs, resolved ahead
// of time: configured amounts, whether a valid non-self referral applies,
// and the currently active promotional events. Keeping the inputs explicit
// makes the stacking rules a pure function of their arguments.
type BonusInput struct {
	BaseSignupBonus     int64
	ReferralSignupBonus int64
	ReferrerReward      int64

	HasReferral bool

	// Zero means no active event of that type.
	SignupEventAmount int64
	SignupEventID     string

	ReferralEventAmount int64
	ReferralEventID     string
}

// BonusCredit is one tagged credit the ledger will apply. The RefType tags
// (signup / referral / event) keep the bonus decomposition reconstructable
// from the ledger alone.
type BonusCredit struct {
	Amount      int64
	Category    models.LedgerCategory
	RefType     string
	RefID       string
	Description string
}

// BonusPlan is the full outcome of a signup: credits for the new account and
// credits for the referrer, if any.
type BonusPlan struct {
	Referee  []BonusCredit
	Referrer []BonusCredit
}

// RefereeTotal sums the credits granted to the signing-up account.
func (p BonusPlan) RefereeTotal() int64 {
	var total int64
	for _, c := range p.Referee {
		total += c.Amount
	}
	return total
}

// ComputeSignupBonus applies the stacking rules:
//
//  1. the base signup bonus applies by default;
//  2. a valid referral replaces it with the larger referral-signup bonus and
//     schedules the referrer reward;
//  3. an active signup_bonus event raises the referee total to the event
//     amount, with the difference tagged as a separate event credit;
//  4. an active referral_bonus event tops up the referrer the same way.
//
// Bonus sources stack by precedence, never by blind summation.
func ComputeSignupBonus(in BonusInput) BonusPlan {
	var plan BonusPlan

	refereeBase := BonusCredit{
		Amount:      in.BaseSignupBonus,
		Category:    models.LedgerCategoryEarn,
		RefType:     "signup",
		Description: "signup bonus",
	}
	if in.HasReferral {
		refereeBase = BonusCredit{
			Amount:      in.ReferralSignupBonus,
			Category:    models.LedgerCategoryEarn,
			RefType:     "referral",
			Description: "referral signup bonus",
		}
	}
	if refereeBase.Amount > 0 {
		plan.Referee = append(plan.Referee, refereeBase)
	}

	if in.SignupEventAmount > refereeBase.Amount {
		plan.Referee = append(plan.Referee, BonusCredit{
			Amount:      in.SignupEventAmount - refereeBase.Amount,
			Category:    models.LedgerCategoryEarn,
			RefType:     "event",
			RefID:       in.SignupEventID,
			Description: fmt.Sprintf("signup event top-up to %d", in.SignupEventAmount),
		})
	}

	if in.HasReferral {
		if in.ReferrerReward > 0 {
			plan.Referrer = append(plan.Referrer, BonusCredit{
				Amount:      in.ReferrerReward,
				Category:    models.LedgerCategoryEarn,
				RefType:     "referral",
				Description: "referral reward",
			})
		}
		if in.ReferralEventAmount > in.ReferrerReward {
			plan.Referrer = append(plan.Referrer, BonusCredit{
				Amount:      in.ReferralEventAmount - in.ReferrerReward,
				Category:    models.LedgerCategoryEarn,
				RefType:     "event",
				RefID:       in.ReferralEventID,
				Description: fmt.Sprintf("referral event top-up to %d", in.ReferralEventAmount),
			})
		}
	}

	return plan
}
