package store

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
)

// GetWallet returns the user's wallet, creating an empty one if missing.
func (s *gormStore) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	var w model.Wallet
	if err := s.db.WithContext(ctx).
		Where(model.Wallet{UserID: userID}).
		FirstOrCreate(&w).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet for %s: %w", userID, err)
	}
	return &w, nil
}

// ListTransactions returns the latest ledger entries of a user.
func (s *gormStore) ListTransactions(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error) {
	var txs []model.WalletTransaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// TopUp credits the wallet. The ledger insert and the balance update commit
// together or not at all.
func (s *gormStore) TopUp(ctx context.Context, userID string, amount float64) (*model.Wallet, *model.WalletTransaction, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	var (
		wallet model.Wallet
		entry  *model.WalletTransaction
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = applyCredit(tx, userID, amount, nil, "Added ₹"+formatAmount(amount)+" to wallet")
		if err != nil {
			return err
		}
		return tx.First(&wallet, "user_id = ?", userID).Error
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(changefeed.TableTransactions, changefeed.OpInsert, userID)
	s.publish(changefeed.TableWallets, changefeed.OpUpdate, userID)
	return &wallet, entry, nil
}

func creditWallet(tx *gorm.DB, userID string, amount float64, bookingID *string, description string) error {
	_, err := applyCredit(tx, userID, amount, bookingID, description)
	return err
}

func applyCredit(tx *gorm.DB, userID string, amount float64, bookingID *string, description string) (*model.WalletTransaction, error) {
	var w model.Wallet
	if err := tx.Where(model.Wallet{UserID: userID}).FirstOrCreate(&w).Error; err != nil {
		return nil, fmt.Errorf("failed to load wallet for %s: %w", userID, err)
	}

	entry := model.WalletTransaction{
		WalletID:    w.ID,
		UserID:      userID,
		Type:        model.TransactionCredit,
		Amount:      amount,
		Description: description,
		BookingID:   bookingID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record credit: %w", err)
	}

	if err := tx.Model(&model.Wallet{}).
		Where("id = ?", w.ID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error; err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return &entry, nil
}

// debitWallet withdraws amount; the balance guard lives in the UPDATE so the
// balance never goes negative under concurrent debits.
func debitWallet(tx *gorm.DB, userID string, amount float64, bookingID *string, description string) error {
	var w model.Wallet
	if err := tx.Where(model.Wallet{UserID: userID}).FirstOrCreate(&w).Error; err != nil {
		return fmt.Errorf("failed to load wallet for %s: %w", userID, err)
	}

	res := tx.Model(&model.Wallet{}).
		Where("id = ? AND balance >= ?", w.ID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}

	entry := model.WalletTransaction{
		WalletID:    w.ID,
		UserID:      userID,
		Type:        model.TransactionDebit,
		Amount:      amount,
		Description: description,
		BookingID:   bookingID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record debit: %w", err)
	}
	return nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
