package services

import (
	"testing"

	"mileage-redemption-system/models"

	"github.com/google/uuid"
)

func newTestScorer(t *testing.T) *RiskScorer {
	t.Helper()
	return NewRiskScorer(openTestDB(t), DefaultRiskWeights)
}

func TestScore_CleanSignalsPass(t *testing.T) {
	scorer := newTestScorer(t)

	assessment := scorer.Score(RiskSignals{
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	})
	if assessment.Score != 0 {
		t.Fatalf("expected score 0 for clean signals, got %d", assessment.Score)
	}
	if assessment.Blocked {
		t.Fatal("clean signals must not block")
	}
}

func TestScore_NoSingleSignalBlocks(t *testing.T) {
	scorer := newTestScorer(t)

	singles := []RiskSignals{
		{UserAgent: "Mozilla/5.0", IPAnonymized: true},
		{UserAgent: ""}, // missing UA only
		{UserAgent: "Mozilla/5.0", AttemptsFromIP24h: 3},
	}
	for _, signals := range singles {
		if a := scorer.Score(signals); a.Blocked {
			t.Fatalf("single signal %+v should not block (score %d)", signals, a.Score)
		}
	}
}

func TestScore_StackedSignalsBlockAndClamp(t *testing.T) {
	scorer := newTestScorer(t)

	assessment := scorer.Score(RiskSignals{
		UserAgent:           "curl/8.0",
		IPAnonymized:        true,
		AttemptsFromIP24h:   6,
		DeviceBlockedBefore: true,
	})
	if assessment.Score != 100 {
		t.Fatalf("expected clamped score 100, got %d", assessment.Score)
	}
	if !assessment.Blocked {
		t.Fatal("expected stacked signals to block")
	}
	if len(assessment.Factors) != 5 {
		t.Fatalf("expected 5 contributing factors, got %v", assessment.Factors)
	}
}

func TestScore_RepeatAttemptTiersAreAdditive(t *testing.T) {
	scorer := newTestScorer(t)

	low := scorer.Score(RiskSignals{UserAgent: "Mozilla/5.0", AttemptsFromIP24h: 3})
	high := scorer.Score(RiskSignals{UserAgent: "Mozilla/5.0", AttemptsFromIP24h: 5})

	if low.Score != DefaultRiskWeights.RepeatIPLow {
		t.Fatalf("expected %d for 3 attempts, got %d", DefaultRiskWeights.RepeatIPLow, low.Score)
	}
	if want := DefaultRiskWeights.RepeatIPLow + DefaultRiskWeights.RepeatIPHigh; high.Score != want {
		t.Fatalf("expected %d for 5 attempts, got %d", want, high.Score)
	}
}

func TestScore_BlacklistOutranksAnonymized(t *testing.T) {
	scorer := newTestScorer(t)

	assessment := scorer.Score(RiskSignals{
		UserAgent:     "Mozilla/5.0",
		IPAnonymized:  true,
		IPBlacklisted: true,
	})
	if assessment.Score != DefaultRiskWeights.BlacklistedIP {
		t.Fatalf("expected only the blacklist weight %d, got %d", DefaultRiskWeights.BlacklistedIP, assessment.Score)
	}
}

func TestCollectSignals_CountsRecentIPAttempts(t *testing.T) {
	scorer := newTestScorer(t)

	for i := 0; i < 4; i++ {
		attempt := &models.SignupAttempt{
			ID:      uuid.NewString(),
			IP:      "10.0.0.9",
			Outcome: models.AttemptOutcomeFailed,
		}
		if err := scorer.DB.Create(attempt).Error; err != nil {
			t.Fatalf("seed attempt: %v", err)
		}
	}

	signals, err := scorer.CollectSignals(RiskSignals{IP: "10.0.0.9", DeviceFingerprint: "dev-1"})
	if err != nil {
		t.Fatalf("CollectSignals: %v", err)
	}
	if signals.AttemptsFromIP24h != 4 {
		t.Fatalf("expected 4 recent attempts, got %d", signals.AttemptsFromIP24h)
	}
	if signals.DeviceBlockedBefore {
		t.Fatal("device was never blocked")
	}
}

func TestCollectSignals_FlagsPreviouslyBlockedDevice(t *testing.T) {
	scorer := newTestScorer(t)

	attempt := &models.SignupAttempt{
		ID:                uuid.NewString(),
		IP:                "10.0.0.1",
		DeviceFingerprint: "dev-blocked",
		Outcome:           models.AttemptOutcomeBlocked,
	}
	if err := scorer.DB.Create(attempt).Error; err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	signals, err := scorer.CollectSignals(RiskSignals{IP: "10.0.0.2", DeviceFingerprint: "dev-blocked"})
	if err != nil {
		t.Fatalf("CollectSignals: %v", err)
	}
	if !signals.DeviceBlockedBefore {
		t.Fatal("expected blocked-device flag")
	}
}

func TestIsBotLikeUserAgent(t *testing.T) {
	bots := []string{"", "  ", "curl/8.0", "python-requests/2.31", "Googlebot/2.1", "HeadlessChrome"}
	for _, ua := range bots {
		if !isBotLikeUserAgent(ua) {
			t.Errorf("expected %q to read as bot-like", ua)
		}
	}
	if isBotLikeUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64)") {
		t.Error("regular browser UA flagged as bot")
	}
}
