package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
)

// CreateProfile inserts a profile together with its empty wallet.
func (s *gormStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.Profile{}).Where("email = ?", p.Email).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check email %q: %w", p.Email, err)
		}
		if existing > 0 {
			return ErrEmailTaken
		}

		if err := tx.Create(p).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("failed to create profile: %w", err)
		}

		wallet := model.Wallet{UserID: p.ID}
		if err := tx.Create(&wallet).Error; err != nil {
			return fmt.Errorf("failed to create wallet for %s: %w", p.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(changefeed.TableProfiles, changefeed.OpInsert, p.ID)
	return nil
}

func (s *gormStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *gormStore) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.db.WithContext(ctx).First(&p, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListProfiles returns every profile, newest first.
func (s *gormStore) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// ListStudents returns the profiles carrying the student role.
func (s *gormStore) ListStudents(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := s.db.WithContext(ctx).Where("role = ?", model.RoleStudent).Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}
