package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/bloodlink/bloodlink_backend/store"
	"gorm.io/gorm"
)

// GormDirectory is the postgres-backed Directory.
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

func (d *GormDirectory) AvailableDonorsByBloodGroup(ctx context.Context, group string) ([]models.User, error) {
	var donors []models.User
	err := d.db.WithContext(ctx).
		Where("role = ? AND blood_group = ? AND is_available = ?", models.RoleDonor, group, true).
		Find(&donors).Error
	return donors, err
}

func (d *GormDirectory) RecordDonation(ctx context.Context, donorID uint, at time.Time) error {
	res := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role = ?", donorID, models.RoleDonor).
		Updates(map[string]interface{}{
			"total_donations":  gorm.Expr("total_donations + 1"),
			"last_donation_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: donor %d", store.ErrNotFound, donorID)
	}
	return nil
}

func (d *GormDirectory) SetAvailability(ctx context.Context, donorID uint, available bool) error {
	res := d.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND role = ?", donorID, models.RoleDonor).
		Update("is_available", available)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: donor %d", store.ErrNotFound, donorID)
	}
	return nil
}
