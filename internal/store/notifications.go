package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
)

func (s *gormStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	s.publish(changefeed.TableNotifications, changefeed.OpInsert, n.UserID)
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *gormStore) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	var notes []model.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// MarkNotificationRead stamps read_at on a notification owned by userID.
func (s *gormStore) MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", at)
	if res.Error != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.publish(changefeed.TableNotifications, changefeed.OpUpdate, userID)
	return nil
}

func (s *gormStore) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Update("sent_at", at).Error
}

// PutSubscription creates or replaces a push subscription for its user.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint, userID string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).
		First(&sub, "endpoint = ? AND user_id = ?", endpoint, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint, userID string) error {
	return s.db.WithContext(ctx).
		Where("endpoint = ? AND user_id = ?", endpoint, userID).
		Delete(&model.PushSubscription{}).Error
}

func (s *gormStore) ListUserSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
