package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bloodlink/bloodlink_backend/models"
)

// CreateRequestInput carries the immutable-at-creation fields of a blood
// request. Everything else (id, priority, expiry, status, counters) is
// derived by the store.
type CreateRequestInput struct {
	PatientID   uint
	PatientName string

	BloodGroup  string
	UnitsNeeded int
	Urgency     string

	HospitalName    string
	HospitalAddress string
	HospitalContact string

	City      string
	State     string
	Latitude  *float64
	Longitude *float64

	Notes            string
	MedicalCondition string
	DoctorName       string
}

// Validate checks the required fields and value ranges shared by every
// store implementation.
func (in CreateRequestInput) Validate() error {
	if in.PatientID == 0 {
		return fmt.Errorf("%w: patient id is required", ErrValidation)
	}
	if in.PatientName == "" {
		return fmt.Errorf("%w: patient name is required", ErrValidation)
	}
	if !models.ValidBloodGroup(in.BloodGroup) {
		return fmt.Errorf("%w: invalid blood group %q", ErrValidation, in.BloodGroup)
	}
	if in.UnitsNeeded < 1 || in.UnitsNeeded > 10 {
		return fmt.Errorf("%w: units needed must be between 1 and 10", ErrValidation)
	}
	if !models.ValidUrgency(in.Urgency) {
		return fmt.Errorf("%w: invalid urgency %q", ErrValidation, in.Urgency)
	}
	if in.HospitalName == "" {
		return fmt.Errorf("%w: hospital name is required", ErrValidation)
	}
	if in.HospitalAddress == "" {
		return fmt.Errorf("%w: hospital address is required", ErrValidation)
	}
	return nil
}

// RequestStore is the single source of truth for blood requests and their
// accepted-donor sets. AddDonor must behave as an atomic add-to-set keyed
// by (request, donor): concurrent accepts by distinct donors never lose
// updates, and a duplicate accept fails with ErrConflict.
type RequestStore interface {
	Create(ctx context.Context, in CreateRequestInput) (*models.BloodRequest, error)
	Get(ctx context.Context, id string) (*models.BloodRequest, error)

	AddDonor(ctx context.Context, requestID string, donorID uint, note string) (*models.BloodRequest, error)
	RemoveDonor(ctx context.Context, requestID string, donorID uint) error
	Cancel(ctx context.Context, requestID string, actorID uint, reason string) error
	MarkFulfilled(ctx context.Context, requestID string) error

	FindByPatient(ctx context.Context, patientID uint, statuses []string) ([]models.BloodRequest, error)
	FindByBloodGroup(ctx context.Context, group, status string) ([]models.BloodRequest, error)
	FindNearby(ctx context.Context, lat, lng, maxDistanceMeters float64) ([]models.BloodRequest, error)
	FindAcceptedByDonor(ctx context.Context, donorID uint) ([]models.BloodRequest, error)

	// IncrementViewCount is best-effort analytics; failures are for the
	// caller to ignore.
	IncrementViewCount(ctx context.Context, ids []string) error

	// ExpireOverdue transitions active requests past their expiry time to
	// expired and reports how many rows changed.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

func buildRequest(in CreateRequestInput, now time.Time) models.BloodRequest {
	return models.BloodRequest{
		PatientID:           in.PatientID,
		PatientName:         in.PatientName,
		BloodGroup:          in.BloodGroup,
		UnitsNeeded:         in.UnitsNeeded,
		Urgency:             in.Urgency,
		Priority:            models.PriorityForUrgency(in.Urgency),
		HospitalName:        in.HospitalName,
		HospitalAddress:     in.HospitalAddress,
		HospitalContact:     in.HospitalContact,
		City:                in.City,
		State:               in.State,
		Latitude:            in.Latitude,
		Longitude:           in.Longitude,
		Notes:               in.Notes,
		MedicalCondition:    in.MedicalCondition,
		DoctorName:          in.DoctorName,
		Status:              models.StatusActive,
		TotalRequiredDonors: in.UnitsNeeded,
		ExpiresAt:           models.ExpiryForUrgency(in.Urgency, now),
	}
}
