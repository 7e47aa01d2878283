package model

import (
	"time"

	"gorm.io/gorm"
)

// NotificationType classifies a notification for the client.
type NotificationType string

const (
	NotifyBookingCreated   NotificationType = "booking_created"
	NotifyBookingCancelled NotificationType = "booking_cancelled"
	NotifyOrderStarted     NotificationType = "order_started"
	NotifyOrderReady       NotificationType = "order_ready"
	NotifyWalletCredited   NotificationType = "wallet_credited"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	UserID    string           `gorm:"size:36;index;not null" json:"user_id"`
	Title     string           `gorm:"size:128;not null" json:"title"`
	Message   string           `gorm:"not null" json:"message"`
	Type      NotificationType `gorm:"size:32;not null" json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	SentAt    *time.Time       `json:"sent_at"`
	ReadAt    *time.Time       `json:"read_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
