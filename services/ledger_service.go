package services

import (
	"errors"
	"log"
	"strconv"

	"mileage-redemption-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerService is the single writer of value movements. The cached
// Account.Balance and the appended LedgerEntry always change in the same
// transaction, so balance == sum(entries) holds at every commit point.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// Credit appends a positive entry and bumps the cached balance.
func (s *LedgerService) Credit(accountID string, amount int64, category models.LedgerCategory, description, refType, refID string) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.CreditTx(tx, accountID, amount, category, description, refType, refID)
		return txErr
	})
	return entry, err
}

// Debit appends a negative entry and lowers the cached balance. Fails with
// ErrInsufficientBalance without touching the ledger when the account cannot
// cover the amount.
func (s *LedgerService) Debit(accountID string, amount int64, category models.LedgerCategory, description, refType, refID string) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.DebitTx(tx, accountID, amount, category, description, refType, refID)
		return txErr
	})
	return entry, err
}

// CreditTx runs the credit inside the caller's transaction so orchestration
// flows can group it with token/coupon/settlement writes.
func (s *LedgerService) CreditTx(tx *gorm.DB, accountID string, amount int64, category models.LedgerCategory, description, refType, refID string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	res := tx.Model(&models.Account{}).
		Where("id = ? AND active = ?", accountID, true).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.classifyAccountFailure(tx, accountID, 0)
	}

	entry := &models.LedgerEntry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Amount:      amount,
		Category:    category,
		Description: description,
		RefType:     refType,
		RefID:       refID,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitTx is the guarded debit. The balance check and the decrement are a
// single UPDATE with a balance >= amount predicate, so two concurrent debits
// can never both pass on a stale read.
func (s *LedgerService) DebitTx(tx *gorm.DB, accountID string, amount int64, category models.LedgerCategory, description, refType, refID string) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	res := tx.Model(&models.Account{}).
		Where("id = ? AND active = ? AND balance >= ?", accountID, true, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.classifyAccountFailure(tx, accountID, amount)
	}

	entry := &models.LedgerEntry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Amount:      -amount,
		Category:    category,
		Description: description,
		RefType:     refType,
		RefID:       refID,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// classifyAccountFailure tells apart the reasons a guarded account UPDATE
// matched no row.
func (s *LedgerService) classifyAccountFailure(tx *gorm.DB, accountID string, debitAmount int64) error {
	var account models.Account
	if err := tx.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if !account.Active {
		return ErrAccountInactive
	}
	if debitAmount > 0 && account.Balance < debitAmount {
		return ErrInsufficientBalance
	}
	// Row exists, is active and covered the amount — the UPDATE should have
	// matched, so report the storage error upward.
	return gorm.ErrInvalidTransaction
}

// AdjustAdmin applies a signed admin correction. Negative adjustments go
// through the same overdraw guard as regular debits.
func (s *LedgerService) AdjustAdmin(accountID string, amount int64, description string) (*models.LedgerEntry, error) {
	if amount == 0 {
		return nil, ErrNonPositiveAmount
	}
	if amount > 0 {
		return s.Credit(accountID, amount, models.LedgerCategoryAdminAdjust, description, "admin", "")
	}
	return s.Debit(accountID, -amount, models.LedgerCategoryAdminAdjust, description, "admin", "")
}

// Balance returns the cached balance. Display reads go through here; debit
// authorization never does — it uses the guarded UPDATE instead.
func (s *LedgerService) Balance(accountID string) (int64, error) {
	var account models.Account
	if err := s.DB.First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return account.Balance, nil
}

// Entries lists an account's ledger, newest first.
func (s *LedgerService) Entries(accountID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.LedgerEntry
	err := s.DB.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// --- Fiber handlers ---

// GetBalance returns the authenticated user's cached balance.
func (s *LedgerService) GetBalance(c *fiber.Ctx) error {
	accountID := c.Locals("user_id").(string)

	balance, err := s.Balance(accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
		}
		log.Printf("DB Error reading balance for %s: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read balance"})
	}

	return c.JSON(fiber.Map{"account_id": accountID, "balance": balance})
}

// GetLedger returns the authenticated user's ledger history.
func (s *LedgerService) GetLedger(c *fiber.Ctx) error {
	accountID := c.Locals("user_id").(string)

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	entries, err := s.Entries(accountID, limit)
	if err != nil {
		log.Printf("DB Error fetching ledger for %s: %v", accountID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch ledger"})
	}

	return c.JSON(entries)
}

// AdminAdjust applies a signed correction to any account (Admin only).
func (s *LedgerService) AdminAdjust(c *fiber.Ctx) error {
	accountID := c.Params("id")
	if _, err := uuid.Parse(accountID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}

	var req struct {
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount must be non-zero"})
	}

	entry, err := s.AdjustAdmin(accountID, req.Amount, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Account not found"})
		case errors.Is(err, ErrAccountInactive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Account is inactive"})
		case errors.Is(err, ErrInsufficientBalance):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Adjustment would overdraw the account"})
		default:
			log.Printf("DB Error on admin adjust for %s: %v", accountID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to adjust balance"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}
