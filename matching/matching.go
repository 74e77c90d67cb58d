// Package matching runs the read-only queries that surface blood requests
// to donors and candidate donors to patients. It never mutates the request
// store beyond a best-effort view counter.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/bloodlink/bloodlink_backend/store"
	"go.uber.org/zap"
)

// DefaultMaxDistanceMeters bounds the nearby search when the caller does
// not pass one.
const DefaultMaxDistanceMeters = 50000

type Service struct {
	requests store.RequestStore
	donors   directory.Directory
	logger   *zap.Logger
}

func NewService(requests store.RequestStore, donors directory.Directory, logger *zap.Logger) *Service {
	return &Service{requests: requests, donors: donors, logger: logger}
}

// RequestsByBloodGroup lists requests of the given group and status,
// ordered urgency-first then newest-first: critical needs surface before
// older, calmer ones.
func (s *Service) RequestsByBloodGroup(ctx context.Context, group, status string) ([]models.BloodRequest, error) {
	if !models.ValidBloodGroup(group) {
		return nil, fmt.Errorf("%w: invalid blood group %q", store.ErrValidation, group)
	}
	reqs, err := s.requests.FindByBloodGroup(ctx, group, status)
	if err != nil {
		return nil, err
	}
	s.countViews(ctx, reqs)
	return reqs, nil
}

// NearbyRequests finds active requests within maxDistanceMeters of the
// donor's stored coordinates, nearest first. A donor without coordinates
// on file degrades gracefully to the blood-group match list.
func (s *Service) NearbyRequests(ctx context.Context, donorID uint, maxDistanceMeters float64) ([]models.BloodRequest, error) {
	donor, err := s.donors.UserByID(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if maxDistanceMeters <= 0 {
		maxDistanceMeters = DefaultMaxDistanceMeters
	}

	if !donor.HasCoordinates() {
		if donor.BloodGroup == "" {
			return []models.BloodRequest{}, nil
		}
		return s.RequestsByBloodGroup(ctx, donor.BloodGroup, models.StatusActive)
	}

	reqs, err := s.requests.FindNearby(ctx, *donor.Latitude, *donor.Longitude, maxDistanceMeters)
	if err != nil {
		return nil, err
	}
	s.countViews(ctx, reqs)
	return reqs, nil
}

// DonorSummary is a candidate donor as shown to a patient. The phone
// number is masked until the donor accepts.
type DonorSummary struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	BloodGroup     string     `json:"blood_group"`
	Phone          string     `json:"phone"`
	Location       string     `json:"location"`
	LastDonationAt *time.Time `json:"last_donation_at,omitempty"`
}

// MatchingDonors lists available donors of the given blood group.
func (s *Service) MatchingDonors(ctx context.Context, group string) ([]DonorSummary, error) {
	if !models.ValidBloodGroup(group) {
		return nil, fmt.Errorf("%w: invalid blood group %q", store.ErrValidation, group)
	}
	donors, err := s.donors.AvailableDonorsByBloodGroup(ctx, group)
	if err != nil {
		return nil, err
	}

	out := make([]DonorSummary, 0, len(donors))
	for _, d := range donors {
		out = append(out, DonorSummary{
			ID:             d.ID,
			Name:           d.Name,
			BloodGroup:     d.BloodGroup,
			Phone:          maskPhone(d.Phone),
			Location:       d.Location,
			LastDonationAt: d.LastDonationAt,
		})
	}
	return out, nil
}

func (s *Service) countViews(ctx context.Context, reqs []models.BloodRequest) {
	if len(reqs) == 0 {
		return
	}
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	if err := s.requests.IncrementViewCount(ctx, ids); err != nil {
		s.logger.Debug("view counter update failed", zap.Error(err))
	}
}

func maskPhone(phone string) string {
	if phone == "" {
		return "N/A"
	}
	if len(phone) <= 6 {
		return phone + "***"
	}
	return phone[:6] + "***"
}
