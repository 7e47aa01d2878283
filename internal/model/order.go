package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// OrderStatus is a stage of a wash/dry cycle.
type OrderStatus string

const (
	OrderQueued         OrderStatus = "queued"
	OrderWashing        OrderStatus = "washing"
	OrderDrying         OrderStatus = "drying"
	OrderReadyForPickup OrderStatus = "ready_for_pickup"
	OrderCompleted      OrderStatus = "completed"
)

// OrderStatuses lists every stage in display order.
var OrderStatuses = []OrderStatus{OrderQueued, OrderWashing, OrderDrying, OrderReadyForPickup, OrderCompleted}

// ActiveOrderStatuses are the stages of an order that has not been collected yet.
var ActiveOrderStatuses = []OrderStatus{OrderQueued, OrderWashing, OrderDrying, OrderReadyForPickup}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Progress maps a status to the percentage shown on the progress bar.
func (s OrderStatus) Progress() int {
	switch s {
	case OrderQueued:
		return 25
	case OrderWashing:
		return 50
	case OrderDrying:
		return 75
	case OrderReadyForPickup:
		return 100
	default:
		return 0
	}
}

// Badge is the upper-cased label shown next to an order, e.g. "READY FOR PICKUP".
func (s OrderStatus) Badge() string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "_", " "))
}

// LaundryOrder tracks one wash/dry cycle on a machine.
type LaundryOrder struct {
	ID                  string      `gorm:"primaryKey;size:36" json:"id"`
	UserID              string      `gorm:"size:36;index;not null" json:"user_id"`
	MachineID           string      `gorm:"size:36;index;not null" json:"machine_id"`
	MachineType         MachineType `gorm:"size:16;not null" json:"machine_type"`
	Status              OrderStatus `gorm:"size:32;index;not null" json:"status"`
	ServiceType         string      `gorm:"size:64;not null" json:"service_type"`
	CreatedAt           time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"not null" json:"updated_at"`
	EstimatedCompletion *time.Time  `json:"estimated_completion"`
	ActualCompletion    *time.Time  `json:"actual_completion"`

	// Associations
	Profile *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// BeforeCreate assigns an id and the initial status.
func (o *LaundryOrder) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	if o.Status == "" {
		o.Status = OrderQueued
	}
	return nil
}
