package model

import (
	"time"

	"gorm.io/gorm"
)

// Wallet is a per-user prepaid balance.
type Wallet struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	Balance   float64   `gorm:"not null" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps the table name used by existing deployments.
func (Wallet) TableName() string { return "user_wallets" }

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// TransactionType is the direction of a wallet movement.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// WalletTransaction is one ledger entry of a wallet.
type WalletTransaction struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	WalletID    string          `gorm:"size:36;index;not null" json:"wallet_id"`
	UserID      string          `gorm:"size:36;index;not null" json:"user_id"`
	Type        TransactionType `gorm:"size:8;not null" json:"type"`
	Amount      float64         `gorm:"not null" json:"amount"`
	Description string          `gorm:"size:255" json:"description"`
	BookingID   *string         `gorm:"size:36;index" json:"booking_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (t *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
