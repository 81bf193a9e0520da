package services

import (
	"path/filepath"
	"testing"
	"time"

	"mileage-redemption-system/models"
	"mileage-redemption-system/utils"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a throwaway SQLite database with the full schema. The
// pool is pinned to one connection so concurrent test goroutines serialize
// the way concurrent requests do against the shared store.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Merchant{},
		&models.LedgerEntry{},
		&models.RedemptionToken{},
		&models.Coupon{},
		&models.Settlement{},
		&models.ReferralLink{},
		&models.SignupAttempt{},
		&models.PromoEvent{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestAccount(t *testing.T, db *gorm.DB, balance int64) *models.Account {
	t.Helper()
	account := &models.Account{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		Balance:      balance,
		ReferralCode: utils.NewReferralCode(),
		Active:       true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create test account: %v", err)
	}
	if balance != 0 {
		// Seed entry so balance == sum(entries) holds for invariant checks.
		entry := &models.LedgerEntry{
			ID:          uuid.NewString(),
			AccountID:   account.ID,
			Amount:      balance,
			Category:    models.LedgerCategoryEarn,
			Description: "seed",
			RefType:     "signup",
		}
		if err := db.Create(entry).Error; err != nil {
			t.Fatalf("seed ledger entry: %v", err)
		}
	}
	return account
}

func createTestMerchant(t *testing.T, db *gorm.DB) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{ID: uuid.NewString(), Name: "Test Store", Active: true}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("create test merchant: %v", err)
	}
	return merchant
}

func createTestCoupon(t *testing.T, db *gorm.DB, accountID string, kind models.CouponKind, mode models.DiscountMode, value int64) *models.Coupon {
	t.Helper()
	coupon := &models.Coupon{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Kind:          kind,
		DiscountMode:  mode,
		DiscountValue: value,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("create test coupon: %v", err)
	}
	return coupon
}

// ledgerSum recomputes an account's balance from its entries.
func ledgerSum(t *testing.T, db *gorm.DB, accountID string) int64 {
	t.Helper()
	var sum struct{ Total int64 }
	if err := db.Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("account_id = ?", accountID).
		Scan(&sum).Error; err != nil {
		t.Fatalf("sum ledger entries: %v", err)
	}
	return sum.Total
}

func accountBalance(t *testing.T, db *gorm.DB, accountID string) int64 {
	t.Helper()
	var account models.Account
	if err := db.First(&account, "id = ?", accountID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	return account.Balance
}
