package services

import "testing"

func TestComputeSignupBonus_BaseOnly(t *testing.T) {
	plan := ComputeSignupBonus(BonusInput{BaseSignupBonus: 1000})

	if len(plan.Referee) != 1 {
		t.Fatalf("expected 1 referee credit, got %d", len(plan.Referee))
	}
	if plan.Referee[0].RefType != "signup" || plan.Referee[0].Amount != 1000 {
		t.Fatalf("expected signup credit of 1000, got %s/%d", plan.Referee[0].RefType, plan.Referee[0].Amount)
	}
	if len(plan.Referrer) != 0 {
		t.Fatalf("expected no referrer credits, got %d", len(plan.Referrer))
	}
}

func TestComputeSignupBonus_ReferralReplacesBase(t *testing.T) {
	plan := ComputeSignupBonus(BonusInput{
		BaseSignupBonus:     1000,
		ReferralSignupBonus: 3000,
		ReferrerReward:      1000,
		HasReferral:         true,
	})

	if total := plan.RefereeTotal(); total != 3000 {
		t.Fatalf("expected referee total 3000, got %d", total)
	}
	if len(plan.Referee) != 1 || plan.Referee[0].RefType != "referral" {
		t.Fatalf("expected a single referral-tagged credit, got %+v", plan.Referee)
	}
	if len(plan.Referrer) != 1 || plan.Referrer[0].Amount != 1000 {
		t.Fatalf("expected referrer reward of 1000, got %+v", plan.Referrer)
	}
}

// The canonical stacking case: base 1000, referral 3000, signup event 5000.
// The referee ends at 5000, decomposed as referral 3000 + event 2000 so the
// sources stay auditable from the ledger alone.
func TestComputeSignupBonus_EventTopUpDecomposition(t *testing.T) {
	plan := ComputeSignupBonus(BonusInput{
		BaseSignupBonus:     1000,
		ReferralSignupBonus: 3000,
		ReferrerReward:      1000,
		HasReferral:         true,
		SignupEventAmount:   5000,
		SignupEventID:       "evt-1",
	})

	if total := plan.RefereeTotal(); total != 5000 {
		t.Fatalf("expected referee total 5000, got %d", total)
	}
	if len(plan.Referee) != 2 {
		t.Fatalf("expected 2 referee credits, got %d", len(plan.Referee))
	}
	if plan.Referee[0].RefType != "referral" || plan.Referee[0].Amount != 3000 {
		t.Fatalf("expected referral credit of 3000, got %s/%d", plan.Referee[0].RefType, plan.Referee[0].Amount)
	}
	if plan.Referee[1].RefType != "event" || plan.Referee[1].Amount != 2000 || plan.Referee[1].RefID != "evt-1" {
		t.Fatalf("expected event top-up of 2000 tagged evt-1, got %+v", plan.Referee[1])
	}
}

func TestComputeSignupBonus_EventBelowCurrentBonusIsIgnored(t *testing.T) {
	plan := ComputeSignupBonus(BonusInput{
		BaseSignupBonus:     1000,
		ReferralSignupBonus: 3000,
		HasReferral:         true,
		SignupEventAmount:   2500, // below the referral bonus, no top-up
	})

	if total := plan.RefereeTotal(); total != 3000 {
		t.Fatalf("expected referee total 3000, got %d", total)
	}
	if len(plan.Referee) != 1 {
		t.Fatalf("expected 1 referee credit, got %d", len(plan.Referee))
	}
}

func TestComputeSignupBonus_ReferralEventTopsUpReferrer(t *testing.T) {
	plan := ComputeSignupBonus(BonusInput{
		BaseSignupBonus:     1000,
		ReferralSignupBonus: 3000,
		ReferrerReward:      1000,
		HasReferral:         true,
		ReferralEventAmount: 1500,
		ReferralEventID:     "evt-ref",
	})

	if len(plan.Referrer) != 2 {
		t.Fatalf("expected 2 referrer credits, got %d", len(plan.Referrer))
	}
	if plan.Referrer[1].RefType != "event" || plan.Referrer[1].Amount != 500 {
		t.Fatalf("expected event top-up of 500, got %+v", plan.Referrer[1])
	}
}

func TestComputeSignupBonus_NoReferralMeansNoReferrerCredits(t *testing.T) {
	plan := ComputeSignupBonus(BonusInput{
		BaseSignupBonus:     1000,
		ReferrerReward:      1000,
		ReferralEventAmount: 9999,
	})

	if len(plan.Referrer) != 0 {
		t.Fatalf("expected no referrer credits without a referral, got %+v", plan.Referrer)
	}
}

func TestComputeSignupBonus_SignupEventAppliesWithoutReferral(t *testing.T) {
	plan := ComputeSignupBonus(BonusInput{
		BaseSignupBonus:   1000,
		SignupEventAmount: 5000,
		SignupEventID:     "evt-2",
	})

	if total := plan.RefereeTotal(); total != 5000 {
		t.Fatalf("expected referee total 5000, got %d", total)
	}
	if plan.Referee[0].RefType != "signup" || plan.Referee[0].Amount != 1000 {
		t.Fatalf("expected signup credit of 1000, got %+v", plan.Referee[0])
	}
	if plan.Referee[1].RefType != "event" || plan.Referee[1].Amount != 4000 {
		t.Fatalf("expected event top-up of 4000, got %+v", plan.Referee[1])
	}
}
