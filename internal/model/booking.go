package model

import (
	"time"

	"gorm.io/gorm"
)

// BookingStatus is the lifecycle state of a reservation.
type BookingStatus string

const (
	BookingUpcoming  BookingStatus = "upcoming"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingUpcoming, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Booking is a reserved date, time slot, service and machine made by a student.
type Booking struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	UserID      string        `gorm:"size:36;index;not null" json:"user_id"`
	BookingDate string        `gorm:"size:10;index;index:idx_bookings_live_slot,unique,priority:2,where:status <> 'cancelled';not null" json:"booking_date"` // YYYY-MM-DD
	TimeSlot    string        `gorm:"size:32;index:idx_bookings_live_slot,unique,priority:3,where:status <> 'cancelled';not null" json:"time_slot"`
	ServiceType string        `gorm:"size:64;not null" json:"service_type"`
	MachineID   string        `gorm:"size:36;index;index:idx_bookings_live_slot,unique,priority:1,where:status <> 'cancelled';not null" json:"machine_id"`
	Status      BookingStatus `gorm:"size:16;index;not null" json:"status"`
	Cost        *float64      `json:"cost"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`

	// Associations
	Machine *Machine `gorm:"foreignKey:MachineID" json:"machine,omitempty"`
}

// BeforeCreate assigns an id and the initial status.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	if b.Status == "" {
		b.Status = BookingUpcoming
	}
	return nil
}

// CostValue returns the booking cost, treating a missing cost as zero.
func (b *Booking) CostValue() float64 {
	if b.Cost == nil {
		return 0
	}
	return *b.Cost
}
