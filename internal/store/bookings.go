package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/parse"
)

// ListUserBookings returns a user's bookings, latest booking date first.
func (s *gormStore) ListUserBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := s.db.WithContext(ctx).
		Preload("Machine").
		Where("user_id = ?", userID).
		Order("booking_date DESC, created_at DESC").
		Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListAllBookings returns every booking with its machine, latest booking date first.
func (s *gormStore) ListAllBookings(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := s.db.WithContext(ctx).
		Preload("Machine").
		Order("booking_date DESC, created_at DESC").
		Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListMachineBookings returns the non-cancelled bookings of a machine on a date.
func (s *gormStore) ListMachineBookings(ctx context.Context, machineID, date string) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := s.db.WithContext(ctx).
		Where("machine_id = ? AND booking_date = ? AND status <> ?", machineID, date, model.BookingCancelled).
		Order("time_slot").
		Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// CreateBooking reserves a slot. When payFromWallet is set the cost is
// debited from the user's wallet in the same transaction.
func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking, payFromWallet bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Concurrent bookings of one machine serialise on its row.
		var machine model.Machine
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&machine, "id = ?", b.MachineID).Error; err != nil {
			return notFound(err)
		}
		if !machine.IsActive {
			return fmt.Errorf("%w: machine %s is not active", ErrMachineUnavailable, machine.Name)
		}

		var taken int64
		if err := tx.Model(&model.Booking{}).
			Where("machine_id = ? AND booking_date = ? AND time_slot = ? AND status <> ?",
				b.MachineID, b.BookingDate, b.TimeSlot, model.BookingCancelled).
			Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check slot availability: %w", err)
		}
		if taken > 0 {
			return ErrSlotTaken
		}

		if err := tx.Create(b).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrSlotTaken
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}

		if payFromWallet && b.CostValue() > 0 {
			if err := debitWallet(tx, b.UserID, b.CostValue(), &b.ID,
				fmt.Sprintf("Paid for %s on %s", b.ServiceType, b.BookingDate)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.Machine = nil
	s.publish(changefeed.TableBookings, changefeed.OpInsert, b.UserID)
	if payFromWallet && b.CostValue() > 0 {
		s.publish(changefeed.TableWallets, changefeed.OpUpdate, b.UserID)
		s.publish(changefeed.TableTransactions, changefeed.OpInsert, b.UserID)
	}
	return nil
}

// CancelBooking marks a booking as cancelled. The update is scoped by owner,
// so a booking belonging to another user is rejected with ErrForbidden.
// A wallet payment for the booking is refunded.
func (s *gormStore) CancelBooking(ctx context.Context, bookingID, userID string) (*model.Booking, error) {
	var booking model.Booking
	refunded := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Booking{}).
			Where("id = ? AND user_id = ? AND status = ?", bookingID, userID, model.BookingUpcoming).
			Update("status", model.BookingCancelled)
		if res.Error != nil {
			return fmt.Errorf("failed to cancel booking %s: %w", bookingID, res.Error)
		}

		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return notFound(err)
		}
		if booking.UserID != userID {
			return ErrForbidden
		}
		if res.RowsAffected == 0 {
			if booking.Status == model.BookingCancelled {
				return nil
			}
			return fmt.Errorf("%w: booking is already %s", ErrNotCancellable, booking.Status)
		}

		var payment model.WalletTransaction
		err := tx.Where("booking_id = ? AND type = ?", bookingID, model.TransactionDebit).First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up payment for booking %s: %w", bookingID, err)
		}

		if err := creditWallet(tx, userID, payment.Amount, &booking.ID, "Refund for cancelled booking"); err != nil {
			return err
		}
		refunded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(changefeed.TableBookings, changefeed.OpUpdate, userID)
	if refunded {
		s.publish(changefeed.TableWallets, changefeed.OpUpdate, userID)
		s.publish(changefeed.TableTransactions, changefeed.OpInsert, userID)
	}
	return &booking, nil
}

// CompletePastBookings marks upcoming bookings whose slot has ended as completed.
func (s *gormStore) CompletePastBookings(ctx context.Context, now time.Time, loc *time.Location) (int, error) {
	today := now.In(loc).Format(parse.DateLayout)

	var candidates []model.Booking
	if err := s.db.WithContext(ctx).
		Where("status = ? AND booking_date <= ?", model.BookingUpcoming, today).
		Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch upcoming bookings: %w", err)
	}

	var ids []string
	users := make(map[string]struct{})
	for _, b := range candidates {
		_, end, err := parse.SlotBounds(b.BookingDate, b.TimeSlot, loc)
		if err != nil {
			s.log.Warnw("skipping booking with unparsable slot", "booking_id", b.ID, "time_slot", b.TimeSlot, "error", err)
			continue
		}
		if !end.After(now) {
			ids = append(ids, b.ID)
			users[b.UserID] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("id IN ? AND status = ?", ids, model.BookingUpcoming).
		Update("status", model.BookingCompleted)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to complete bookings: %w", res.Error)
	}

	for userID := range users {
		s.publish(changefeed.TableBookings, changefeed.OpUpdate, userID)
	}
	return int(res.RowsAffected), nil
}
