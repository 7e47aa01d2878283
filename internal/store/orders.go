package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
)

// EstimatedCycle is the expected duration of a cycle started from a scan.
const EstimatedCycle = 45 * time.Minute

// StartOrder begins a cycle on an available machine and marks it in use.
func (s *gormStore) StartOrder(ctx context.Context, userID, machineID, serviceType string, now time.Time) (*model.LaundryOrder, error) {
	var order model.LaundryOrder

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var machine model.Machine
		if err := tx.First(&machine, "id = ?", machineID).Error; err != nil {
			return notFound(err)
		}
		if !machine.Bookable() {
			return fmt.Errorf("%w: machine %s is currently %s", ErrMachineUnavailable, machine.Name, machine.Status)
		}

		eta := now.Add(EstimatedCycle)
		order = model.LaundryOrder{
			UserID:              userID,
			MachineID:           machine.ID,
			MachineType:         machine.Type,
			Status:              model.OrderWashing,
			ServiceType:         serviceType,
			EstimatedCompletion: &eta,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// Guarded on status so two concurrent scans cannot both claim the machine.
		res := tx.Model(&model.Machine{}).
			Where("id = ? AND status = ?", machine.ID, model.MachineAvailable).
			Updates(map[string]any{"status": model.MachineInUse, "current_order_id": order.ID})
		if res.Error != nil {
			return fmt.Errorf("failed to update machine %s: %w", machine.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: machine %s was taken", ErrMachineUnavailable, machine.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(changefeed.TableOrders, changefeed.OpInsert, userID)
	s.publish(changefeed.TableMachines, changefeed.OpUpdate, "")
	return &order, nil
}

// CurrentOrder returns the latest not-yet-collected order of a user.
func (s *gormStore) CurrentOrder(ctx context.Context, userID string) (*model.LaundryOrder, error) {
	var order model.LaundryOrder
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, model.ActiveOrderStatuses).
		Order("created_at DESC").
		First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// RecentOrders returns a user's completed orders, newest first.
func (s *gormStore) RecentOrders(ctx context.Context, userID string, limit int) ([]model.LaundryOrder, error) {
	var orders []model.LaundryOrder
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.OrderCompleted).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ActiveOrders returns every not-yet-collected order with its owner's profile.
func (s *gormStore) ActiveOrders(ctx context.Context) ([]model.LaundryOrder, error) {
	var orders []model.LaundryOrder
	if err := s.db.WithContext(ctx).
		Preload("Profile").
		Where("status IN ?", model.ActiveOrderStatuses).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus sets any known status on an order; transitions are not
// validated. Completing an order stamps its completion time and frees the machine.
func (s *gormStore) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus, now time.Time) (*model.LaundryOrder, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var order model.LaundryOrder
	machineReleased := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return notFound(err)
		}

		updates := map[string]any{"status": status, "updated_at": now}
		if status == model.OrderCompleted {
			updates["actual_completion"] = now
		}
		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update order %s: %w", orderID, err)
		}
		order.Status = status
		order.UpdatedAt = now
		if status == model.OrderCompleted {
			order.ActualCompletion = &now
		}

		if status == model.OrderCompleted {
			res := tx.Model(&model.Machine{}).
				Where("id = ? AND current_order_id = ?", order.MachineID, order.ID).
				Updates(map[string]any{"status": model.MachineAvailable, "current_order_id": nil})
			if res.Error != nil {
				return fmt.Errorf("failed to release machine %s: %w", order.MachineID, res.Error)
			}
			machineReleased = res.RowsAffected > 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(changefeed.TableOrders, changefeed.OpUpdate, order.UserID)
	if machineReleased {
		s.publish(changefeed.TableMachines, changefeed.OpUpdate, "")
	}
	return &order, nil
}
