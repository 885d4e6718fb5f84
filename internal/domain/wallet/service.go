// internal/domain/wallet/service.go
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/pkg/apperr"
	"gorm.io/gorm"
)

// Service handles account balances and the transaction ledger
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new wallet service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// TopUpRequest represents a self-service top-up
type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// AdminTopUpRequest represents an administrative top-up for any user
type AdminTopUpRequest struct {
	UserID      uint            `json:"user_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description"`
}

// CreateTransactionRequest represents a manual ledger entry
type CreateTransactionRequest struct {
	AccountID   uint            `json:"account_id" binding:"required"`
	Type        string          `json:"type" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Description string          `json:"description"`
}

// TransactionResult is returned after a ledger mutation
type TransactionResult struct {
	TransactionID uint            `json:"transaction_id"`
	Balance       decimal.Decimal `json:"balance"`
}

// CreateAccount creates the user's wallet account. Intended to run inside
// the registration transaction so user and account appear together.
func CreateAccount(tx *gorm.DB, userID uint) (*Account, error) {
	account := Account{UserID: userID, Balance: decimal.Zero}
	if err := tx.Create(&account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &account, nil
}

// GetAccount retrieves the account for a user
func (s *Service) GetAccount(userID uint) (*Account, error) {
	var account Account
	if err := s.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("account")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &account, nil
}

// GetTransactions lists the ledger for a user's account, newest first
func (s *Service) GetTransactions(userID uint) ([]Transaction, error) {
	account, err := s.GetAccount(userID)
	if err != nil {
		return nil, err
	}

	var transactions []Transaction
	if err := s.db.Where("account_id = ?", account.ID).
		Order("created_at DESC, id DESC").
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return transactions, nil
}

// TopUp credits the user's balance, bounded by the per-top-up cap and the
// system balance ceiling, and appends the matching credit Transaction.
func (s *Service) TopUp(userID uint, amount decimal.Decimal) (*TransactionResult, error) {
	return s.topUp(userID, amount, s.config.Commerce.TopUpCap, "")
}

// AdminTopUp is the administrative variant of TopUp: same effect, bounded by
// the administrative cap and carrying an operator-supplied description.
func (s *Service) AdminTopUp(userID uint, amount decimal.Decimal, description string) (*TransactionResult, error) {
	return s.topUp(userID, amount, s.config.Commerce.AdminTopUpCap, description)
}

func (s *Service) topUp(userID uint, amount, limit decimal.Decimal, description string) (*TransactionResult, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("top-up amount must be positive")
	}
	if amount.GreaterThan(limit) {
		return nil, apperr.Validation("top-up amount exceeds the limit of %s", limit.StringFixed(2))
	}

	var result *TransactionResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var account Account
		if err := tx.Where("user_id = ?", userID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("account")
			}
			return fmt.Errorf("failed to load account: %w", err)
		}

		// The ceiling check rides on the same conditional update that applies
		// the credit, so concurrent top-ups cannot overshoot it.
		ceiling := s.config.Commerce.MaxBalance.Sub(amount)
		res := tx.Model(&Account{}).
			Where("id = ? AND balance <= ?", account.ID, ceiling).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to credit account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Validation("top-up would exceed the maximum balance of %s",
				s.config.Commerce.MaxBalance.StringFixed(2))
		}

		if description == "" {
			description = fmt.Sprintf("Top-up of %s", amount.StringFixed(2))
		}
		entry := Transaction{
			AccountID:   account.ID,
			Type:        TransactionTypeCredit,
			Amount:      amount,
			Description: description,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}

		if err := tx.First(&account, account.ID).Error; err != nil {
			return fmt.Errorf("failed to reload account: %w", err)
		}
		result = &TransactionResult{TransactionID: entry.ID, Balance: account.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTransaction applies a manual credit or debit to an account and
// appends the ledger row. The type string is case-insensitive and must be
// exactly "credit" or "debit".
func (s *Service) CreateTransaction(req *CreateTransactionRequest) (*TransactionResult, error) {
	txType := TransactionType(strings.ToLower(strings.TrimSpace(req.Type)))
	if txType != TransactionTypeCredit && txType != TransactionTypeDebit {
		return nil, apperr.Validation("transaction type must be credit or debit")
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("transaction amount must be positive")
	}

	var result *TransactionResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var account Account
		if err := tx.First(&account, req.AccountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("account")
			}
			return fmt.Errorf("failed to load account: %w", err)
		}

		if err := applyBalanceChange(tx, &account, txType, req.Amount); err != nil {
			return err
		}

		description := req.Description
		if description == "" {
			description = fmt.Sprintf("%s of %s", txType, req.Amount.StringFixed(2))
		}
		entry := Transaction{
			AccountID:   account.ID,
			Type:        txType,
			Amount:      req.Amount,
			Description: description,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append transaction: %w", err)
		}

		if err := tx.First(&account, account.ID).Error; err != nil {
			return fmt.Errorf("failed to reload account: %w", err)
		}
		result = &TransactionResult{TransactionID: entry.ID, Balance: account.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteTransaction reverses a ledger entry's balance effect and removes the
// row. This is an explicit manual reversal, not a compensating entry:
// deleting a credit subtracts its amount, deleting a debit adds it back.
func (s *Service) DeleteTransaction(transactionID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var entry Transaction
		if err := tx.First(&entry, transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("transaction")
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		var account Account
		if err := tx.First(&account, entry.AccountID).Error; err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}

		// Reversal flips the direction of the original entry.
		reverse := TransactionTypeCredit
		if entry.Type == TransactionTypeCredit {
			reverse = TransactionTypeDebit
		}
		if err := applyBalanceChange(tx, &account, reverse, entry.Amount); err != nil {
			return err
		}

		if err := tx.Delete(&entry).Error; err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		return nil
	})
}

// Debit atomically withdraws amount from the account and appends the paired
// debit Transaction. Meant to be called inside the caller's transaction;
// used by checkout settlement.
func Debit(tx *gorm.DB, account *Account, amount decimal.Decimal, description string) (*Transaction, error) {
	if err := applyBalanceChange(tx, account, TransactionTypeDebit, amount); err != nil {
		return nil, err
	}

	entry := Transaction{
		AccountID:   account.ID,
		Type:        TransactionTypeDebit,
		Amount:      amount,
		Description: description,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return &entry, nil
}

// applyBalanceChange mutates the balance with a conditional update so a
// debit can never drive the balance negative, even under concurrency.
func applyBalanceChange(tx *gorm.DB, account *Account, txType TransactionType, amount decimal.Decimal) error {
	if txType == TransactionTypeCredit {
		res := tx.Model(&Account{}).
			Where("id = ?", account.ID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to credit account: %w", res.Error)
		}
		return nil
	}

	res := tx.Model(&Account{}).
		Where("id = ? AND balance >= ?", account.ID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to debit account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var current Account
		if err := tx.First(&current, account.ID).Error; err != nil {
			return fmt.Errorf("failed to reload account: %w", err)
		}
		return apperr.InsufficientBalance(amount.Sub(current.Balance))
	}
	return nil
}
