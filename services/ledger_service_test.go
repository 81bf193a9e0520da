package services

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"mileage-redemption-system/models"
)

func TestLedger_CreditAndDebitKeepInvariant(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)
	account := createTestAccount(t, db, 0)

	if _, err := ledger.Credit(account.ID, 5000, models.LedgerCategoryEarn, "signup bonus", "signup", account.ID); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := ledger.Debit(account.ID, 1200, models.LedgerCategorySpend, "store purchase", "qr_redeem", "tok-1"); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if got := accountBalance(t, db, account.ID); got != 3800 {
		t.Fatalf("expected balance 3800, got %d", got)
	}
	if sum := ledgerSum(t, db, account.ID); sum != 3800 {
		t.Fatalf("ledger sum %d does not match balance", sum)
	}
}

func TestLedger_DebitBeyondBalanceFailsWithoutMutation(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)
	account := createTestAccount(t, db, 1000)

	_, err := ledger.Debit(account.ID, 1001, models.LedgerCategorySpend, "overdraw", "qr_redeem", "tok-x")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if got := accountBalance(t, db, account.ID); got != 1000 {
		t.Fatalf("balance mutated on failed debit: %d", got)
	}
	var count int64
	db.Model(&models.LedgerEntry{}).Where("account_id = ? AND amount < 0", account.ID).Count(&count)
	if count != 0 {
		t.Fatalf("failed debit left %d ledger entries", count)
	}
}

func TestLedger_NonPositiveAmountsRejected(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)
	account := createTestAccount(t, db, 100)

	if _, err := ledger.Credit(account.ID, 0, models.LedgerCategoryEarn, "", "signup", ""); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("expected ErrNonPositiveAmount for zero credit, got %v", err)
	}
	if _, err := ledger.Debit(account.ID, -5, models.LedgerCategorySpend, "", "qr_redeem", ""); !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("expected ErrNonPositiveAmount for negative debit, got %v", err)
	}
}

func TestLedger_InactiveAccountRejected(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)
	account := createTestAccount(t, db, 500)
	if err := db.Model(&models.Account{}).Where("id = ?", account.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := ledger.Credit(account.ID, 100, models.LedgerCategoryEarn, "", "signup", ""); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestLedger_UnknownAccountRejected(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)

	if _, err := ledger.Credit("no-such-account", 100, models.LedgerCategoryEarn, "", "signup", ""); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedger_AdminAdjustRespectsOverdrawGuard(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)
	account := createTestAccount(t, db, 300)

	if _, err := ledger.AdjustAdmin(account.ID, -500, "correction"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := ledger.AdjustAdmin(account.ID, -200, "correction"); err != nil {
		t.Fatalf("valid negative adjust failed: %v", err)
	}
	if _, err := ledger.AdjustAdmin(account.ID, 700, "goodwill"); err != nil {
		t.Fatalf("positive adjust failed: %v", err)
	}

	if got := accountBalance(t, db, account.ID); got != 800 {
		t.Fatalf("expected balance 800, got %d", got)
	}
	if sum := ledgerSum(t, db, account.ID); sum != 800 {
		t.Fatalf("ledger sum %d does not match balance", sum)
	}
}

// Random interleavings of credits and debits, rejecting invalid debits,
// must preserve balance == sum(entries) after every step.
func TestLedger_RandomSequenceKeepsInvariant(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)
	account := createTestAccount(t, db, 0)

	rng := rand.New(rand.NewSource(42))
	var expected int64

	for i := 0; i < 300; i++ {
		amount := int64(rng.Intn(500) + 1)
		if rng.Intn(2) == 0 {
			if _, err := ledger.Credit(account.ID, amount, models.LedgerCategoryEarn, "rand credit", "signup", ""); err != nil {
				t.Fatalf("step %d credit: %v", i, err)
			}
			expected += amount
		} else {
			_, err := ledger.Debit(account.ID, amount, models.LedgerCategorySpend, "rand debit", "qr_redeem", "")
			switch {
			case err == nil:
				expected -= amount
			case errors.Is(err, ErrInsufficientBalance):
				if amount <= expected {
					t.Fatalf("step %d: debit of %d rejected with balance %d", i, amount, expected)
				}
			default:
				t.Fatalf("step %d debit: %v", i, err)
			}
		}

		if got := accountBalance(t, db, account.ID); got != expected {
			t.Fatalf("step %d: balance %d, expected %d", i, got, expected)
		}
		if sum := ledgerSum(t, db, account.ID); sum != expected {
			t.Fatalf("step %d: ledger sum %d, expected %d", i, sum, expected)
		}
	}
}

// Two debits racing on a balance that covers only one of them must not both
// succeed — the guarded UPDATE, not a read-then-write, decides.
func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := openTestDB(t)
	ledger := NewLedgerService(db)
	account := createTestAccount(t, db, 1000)

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit(account.ID, 300, models.LedgerCategorySpend, "race", "qr_redeem", "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientBalance):
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}

	// 1000 / 300 = at most 3 wins.
	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful debits, got %d", succeeded)
	}
	if got := accountBalance(t, db, account.ID); got != 100 {
		t.Fatalf("expected final balance 100, got %d", got)
	}
	if sum := ledgerSum(t, db, account.ID); sum != 100 {
		t.Fatalf("ledger sum %d does not match balance", sum)
	}
}
