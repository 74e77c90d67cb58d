package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bloodlink/bloodlink_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the postgres-backed RequestStore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, in CreateRequestInput) (*models.BloodRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	req := buildRequest(in, time.Now())
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.BloodRequest, error) {
	var req models.BloodRequest
	err := s.db.WithContext(ctx).Preload("AcceptedDonors").First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &req, nil
}

// AddDonor appends a donor to the accepted set. The insert is an
// ON CONFLICT DO NOTHING on the (request_id, donor_id) composite key, so
// concurrent accepts by distinct donors never overwrite each other and a
// duplicate accept shows up as zero rows affected. The request row is read
// FOR UPDATE: donor mutations on the same request serialize, keeping the
// derived total_accepted_donors equal to the row count under READ COMMITTED.
func (s *GormStore) AddDonor(ctx context.Context, requestID string, donorID uint, note string) (*models.BloodRequest, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.BloodRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
			}
			return err
		}
		if req.Status != models.StatusActive {
			return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
		}

		entry := models.AcceptedDonor{
			RequestID:  requestID,
			DonorID:    donorID,
			Status:     models.DonorAccepted,
			Notes:      note,
			AcceptedAt: time.Now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: donor %d already accepted request %s", ErrConflict, donorID, requestID)
		}

		return s.recountDonors(tx, requestID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, requestID)
}

// RemoveDonor deletes the donor's entry if present. Removing a donor that
// never accepted is not an error.
func (s *GormStore) RemoveDonor(ctx context.Context, requestID string, donorID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.BloodRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
			}
			return err
		}

		if err := tx.Where("request_id = ? AND donor_id = ?", requestID, donorID).
			Delete(&models.AcceptedDonor{}).Error; err != nil {
			return err
		}

		return s.recountDonors(tx, requestID)
	})
}

func (s *GormStore) Cancel(ctx context.Context, requestID string, actorID uint, reason string) error {
	now := time.Now()
	return s.transition(ctx, requestID, map[string]interface{}{
		"status":              models.StatusCancelled,
		"cancelled_at":        now,
		"cancelled_by":        actorID,
		"cancellation_reason": reason,
	})
}

func (s *GormStore) MarkFulfilled(ctx context.Context, requestID string) error {
	now := time.Now()
	return s.transition(ctx, requestID, map[string]interface{}{
		"status":       models.StatusFulfilled,
		"completed_at": now,
	})
}

// transition applies a terminal transition guarded by status = active in
// the WHERE clause, so two racing transitions cannot both win.
func (s *GormStore) transition(ctx context.Context, requestID string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.BloodRequest{}).
		Where("id = ? AND status = ?", requestID, models.StatusActive).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		req, err := s.Get(ctx, requestID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}
	return nil
}

func (s *GormStore) FindByPatient(ctx context.Context, patientID uint, statuses []string) ([]models.BloodRequest, error) {
	var reqs []models.BloodRequest
	err := s.db.WithContext(ctx).
		Where("patient_id = ? AND status IN ?", patientID, statuses).
		Order("created_at DESC").
		Preload("AcceptedDonors").
		Find(&reqs).Error
	return reqs, err
}

func (s *GormStore) FindByBloodGroup(ctx context.Context, group, status string) ([]models.BloodRequest, error) {
	var reqs []models.BloodRequest
	err := s.db.WithContext(ctx).
		Where("blood_group = ? AND status = ?", group, status).
		Order("priority DESC, created_at DESC").
		Preload("AcceptedDonors").
		Find(&reqs).Error
	return reqs, err
}

// haversineSQL computes the great-circle distance in meters between the
// given point and a request's stored coordinates.
const haversineSQL = "6371000 * acos(least(1.0, " +
	"cos(radians(?)) * cos(radians(latitude)) * cos(radians(longitude) - radians(?)) + " +
	"sin(radians(?)) * sin(radians(latitude))))"

func (s *GormStore) FindNearby(ctx context.Context, lat, lng, maxDistanceMeters float64) ([]models.BloodRequest, error) {
	var reqs []models.BloodRequest
	err := s.db.WithContext(ctx).
		Where("status = ? AND latitude IS NOT NULL AND longitude IS NOT NULL", models.StatusActive).
		Where(haversineSQL+" <= ?", lat, lng, lat, maxDistanceMeters).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: haversineSQL + " ASC", Vars: []interface{}{lat, lng, lat}},
		}).
		Preload("AcceptedDonors").
		Find(&reqs).Error
	return reqs, err
}

func (s *GormStore) FindAcceptedByDonor(ctx context.Context, donorID uint) ([]models.BloodRequest, error) {
	var reqs []models.BloodRequest
	err := s.db.WithContext(ctx).
		Joins("JOIN accepted_donors ON accepted_donors.request_id = blood_requests.id").
		Where("accepted_donors.donor_id = ? AND blood_requests.status = ?", donorID, models.StatusActive).
		Order("blood_requests.created_at DESC").
		Preload("AcceptedDonors").
		Find(&reqs).Error
	return reqs, err
}

func (s *GormStore) IncrementViewCount(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.BloodRequest{}).
		Where("id IN ?", ids).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

func (s *GormStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.BloodRequest{}).
		Where("status = ? AND expires_at < ?", models.StatusActive, now).
		Update("status", models.StatusExpired)
	return res.RowsAffected, res.Error
}

// recountDonors keeps total_accepted_donors equal to the length of the
// accepted set.
func (s *GormStore) recountDonors(tx *gorm.DB, requestID string) error {
	var n int64
	if err := tx.Model(&models.AcceptedDonor{}).
		Where("request_id = ?", requestID).Count(&n).Error; err != nil {
		return err
	}
	return tx.Model(&models.BloodRequest{}).
		Where("id = ?", requestID).
		UpdateColumn("total_accepted_donors", n).Error
}
