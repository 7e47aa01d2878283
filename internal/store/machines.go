package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"laundrylink-backend/internal/changefeed"
	"laundrylink-backend/internal/model"
)

// ListMachines returns every machine ordered by id.
func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("id").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}

func (s *gormStore) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	var m model.Machine
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// GetMachineByQR resolves a decoded QR payload to its machine.
func (s *gormStore) GetMachineByQR(ctx context.Context, code string) (*model.Machine, error) {
	var m model.Machine
	if err := s.db.WithContext(ctx).First(&m, "qr_code = ?", code).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// UpsertMachine creates the machine or replaces its editable columns.
func (s *gormStore) UpsertMachine(ctx context.Context, m *model.Machine) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.QRCode != nil {
			var clash int64
			if err := tx.Model(&model.Machine{}).
				Where("qr_code = ? AND id <> ?", *m.QRCode, m.ID).
				Count(&clash).Error; err != nil {
				return fmt.Errorf("failed to check qr code: %w", err)
			}
			if clash > 0 {
				return ErrQRCodeTaken
			}
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "type", "location", "is_active", "status", "qr_code", "updated_at"}),
		}).Create(m).Error
		if isUniqueViolation(err) {
			return ErrQRCodeTaken
		}
		if err != nil {
			return fmt.Errorf("failed to upsert machine %s: %w", m.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(changefeed.TableMachines, changefeed.OpUpdate, "")
	return nil
}

// SetMachineStatus changes the availability label of a machine. Putting a
// machine back to Available clears any stale current order.
func (s *gormStore) SetMachineStatus(ctx context.Context, id string, status model.MachineStatus) (*model.Machine, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	updates := map[string]any{"status": status}
	if status == model.MachineAvailable {
		updates["current_order_id"] = nil
	}
	res := s.db.WithContext(ctx).Model(&model.Machine{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update machine %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	s.publish(changefeed.TableMachines, changefeed.OpUpdate, "")
	return s.GetMachine(ctx, id)
}

// ListServices returns the service catalogue, cheapest first.
func (s *gormStore) ListServices(ctx context.Context) ([]model.Service, error) {
	var services []model.Service
	if err := s.db.WithContext(ctx).Order("price, id").Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

func (s *gormStore) GetServiceByName(ctx context.Context, name string) (*model.Service, error) {
	var svc model.Service
	if err := s.db.WithContext(ctx).First(&svc, "name = ?", name).Error; err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

// SeedServices inserts services that do not exist yet and leaves the rest untouched.
func (s *gormStore) SeedServices(ctx context.Context, services []model.Service) error {
	if len(services) == 0 {
		return nil
	}
	rows := make([]model.Service, len(services))
	copy(rows, services)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&rows).Error
}
