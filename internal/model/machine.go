package model

import (
	"time"

	"gorm.io/gorm"
)

// MachineType distinguishes washers from dryers.
type MachineType string

const (
	MachineWasher MachineType = "washer"
	MachineDryer  MachineType = "dryer"
)

// Valid reports whether t is a known machine type.
func (t MachineType) Valid() bool {
	return t == MachineWasher || t == MachineDryer
}

// MachineStatus is the availability label shown on the live status board.
type MachineStatus string

const (
	MachineAvailable   MachineStatus = "Available"
	MachineInUse       MachineStatus = "In Use"
	MachineMaintenance MachineStatus = "Maintenance"
)

// Valid reports whether s is a known machine status.
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineAvailable, MachineInUse, MachineMaintenance:
		return true
	}
	return false
}

// Machine represents a physical washer or dryer.
type Machine struct {
	ID             string        `gorm:"primaryKey;size:36" json:"id"` // Operator assigned, e.g. "W1"
	Name           string        `gorm:"size:128;not null" json:"name"`
	Type           MachineType   `gorm:"size:16;not null" json:"type"`
	Location       string        `gorm:"size:128" json:"location"`
	IsActive       bool          `gorm:"not null" json:"is_active"`
	Status         MachineStatus `gorm:"size:32;not null" json:"status"`
	CurrentOrderID *string       `gorm:"size:36" json:"current_order_id"`
	QRCode         *string       `gorm:"uniqueIndex;size:255" json:"qr_code"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// BeforeCreate fills defaults that the zero value would otherwise hide.
func (m *Machine) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	if m.Status == "" {
		m.Status = MachineAvailable
	}
	return nil
}

// Bookable reports whether a new cycle may be started on the machine.
func (m *Machine) Bookable() bool {
	return m.IsActive && m.Status == MachineAvailable
}
