package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the row exists but belongs to another user.
	ErrForbidden = errors.New("permission denied")
	// ErrSlotTaken is returned when the machine is already booked for the slot.
	ErrSlotTaken = errors.New("time slot already booked")
	// ErrMachineUnavailable is returned when a machine cannot take a new cycle.
	ErrMachineUnavailable = errors.New("machine unavailable")
	// ErrInsufficientFunds is returned when a wallet debit would overdraw the balance.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	// ErrEmailTaken is returned when a profile with the same email exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrQRCodeTaken is returned when a QR code is already assigned to another machine.
	ErrQRCodeTaken = errors.New("qr code already assigned to another machine")
	// ErrInvalidAmount is returned for non-positive wallet amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrNotCancellable is returned when a booking has already left the upcoming state.
	ErrNotCancellable = errors.New("booking cannot be cancelled")
)

// notFound maps gorm's record-not-found to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a duplicate-key failure on either
// supported driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
