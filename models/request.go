package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Blood request statuses. A request starts active and ends in exactly one
// of the terminal statuses.
const (
	StatusActive    = "active"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Urgency tiers, highest first.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

// Per-donor statuses on an accepted request.
const (
	DonorAccepted  = "accepted"
	DonorConfirmed = "confirmed"
	DonorCompleted = "completed"
	DonorCancelled = "cancelled"
)

// BloodGroups is the set of valid ABO/Rh types.
var BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// ValidBloodGroup reports whether g is one of the eight ABO/Rh types.
func ValidBloodGroup(g string) bool {
	for _, b := range BloodGroups {
		if g == b {
			return true
		}
	}
	return false
}

// ValidUrgency reports whether u is a known urgency tier.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow:
		return true
	}
	return false
}

// PriorityForUrgency maps an urgency tier to its sort priority.
func PriorityForUrgency(urgency string) int {
	switch urgency {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	}
	return 0
}

// ExpiryForUrgency computes when a request created at t stops being
// matchable: 7 days for critical requests, 14 days otherwise.
func ExpiryForUrgency(urgency string, t time.Time) time.Time {
	days := 14
	if urgency == UrgencyCritical {
		days = 7
	}
	return t.Add(time.Duration(days) * 24 * time.Hour)
}

type BloodRequest struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	PatientID   uint   `gorm:"not null;index:idx_patient_status" json:"patient_id"`
	PatientName string `gorm:"size:255;not null" json:"patient_name"`

	BloodGroup  string `gorm:"size:3;not null;index:idx_group_status" json:"blood_group"`
	UnitsNeeded int    `gorm:"not null;default:1" json:"units_needed"`
	Urgency     string `gorm:"size:10;not null;default:'medium'" json:"urgency"`
	Priority    int    `gorm:"default:0;index" json:"priority"`

	HospitalName    string `gorm:"size:255;not null" json:"hospital_name"`
	HospitalAddress string `gorm:"size:255;not null" json:"hospital_address"`
	HospitalContact string `gorm:"size:50" json:"hospital_contact"`

	City      string   `gorm:"size:100;index" json:"city"`
	State     string   `gorm:"size:100" json:"state"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Notes            string `gorm:"size:500" json:"notes"`
	MedicalCondition string `gorm:"size:255" json:"medical_condition"`
	DoctorName       string `gorm:"size:255" json:"doctor_name"`

	Status string `gorm:"size:20;not null;default:'active';index:idx_patient_status;index:idx_group_status" json:"status"`

	AcceptedDonors      []AcceptedDonor `gorm:"foreignKey:RequestID;references:ID" json:"accepted_donors"`
	TotalAcceptedDonors int             `gorm:"default:0" json:"total_accepted_donors"`
	TotalRequiredDonors int             `gorm:"default:1" json:"total_required_donors"`

	ExpiresAt          time.Time  `gorm:"index" json:"expires_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *uint      `json:"cancelled_by,omitempty"`
	CancellationReason string     `gorm:"size:500" json:"cancellation_reason"`

	ViewCount int `gorm:"default:0" json:"view_count"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AcceptedDonor is one donor's commitment to a request. The composite
// primary key guarantees at most one entry per (request, donor) pair.
type AcceptedDonor struct {
	RequestID  string    `gorm:"primaryKey;size:36" json:"request_id"`
	DonorID    uint      `gorm:"primaryKey" json:"donor_id"`
	Status     string    `gorm:"size:20;not null;default:'accepted'" json:"status"`
	Notes      string    `gorm:"size:500" json:"notes"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// BeforeCreate assigns the id and the derived fields. Priority is a pure
// function of urgency; expiry depends on urgency and creation time.
func (r *BloodRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Priority = PriorityForUrgency(r.Urgency)
	if r.ExpiresAt.IsZero() {
		r.ExpiresAt = ExpiryForUrgency(r.Urgency, time.Now())
	}
	return nil
}

// IsExpired reports whether the request is past its expiry time. The
// background sweeper moves such requests to StatusExpired; this is the
// read-time view in between sweeps.
func (r *BloodRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsFulfilled reports whether enough donors accepted. The required count is
// a target, not a cap: over-acceptance is allowed to absorb no-shows.
func (r *BloodRequest) IsFulfilled() bool {
	return r.TotalAcceptedDonors >= r.TotalRequiredDonors
}

// HasDonor reports whether donorID is already in the accepted list.
func (r *BloodRequest) HasDonor(donorID uint) bool {
	for _, d := range r.AcceptedDonors {
		if d.DonorID == donorID {
			return true
		}
	}
	return false
}
