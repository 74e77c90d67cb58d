// Package coordinator applies the business rule around donor acceptance:
// adding a donor to a request and updating that donor's aggregate stats
// either both happen or neither does.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/bloodlink/bloodlink_backend/chat"
	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/bloodlink/bloodlink_backend/store"
	"go.uber.org/zap"
)

type Coordinator struct {
	requests store.RequestStore
	donors   directory.Directory
	logger   *zap.Logger
}

func New(requests store.RequestStore, donors directory.Directory, logger *zap.Logger) *Coordinator {
	return &Coordinator{requests: requests, donors: donors, logger: logger}
}

// AcceptResult reports the outcome of a successful acceptance, including
// the donor's updated stats for the caller's dashboard.
type AcceptResult struct {
	Request        *models.BloodRequest `json:"request"`
	TotalDonations int                  `json:"total_donations"`
	LastDonationAt time.Time            `json:"last_donation_at"`
}

// Accept adds the donor to the request's accepted set and records the
// donation on the donor's profile. The request append goes first; if the
// stats update then fails, the append is compensated by removing the donor
// again, so the caller always sees either a full success or a
// nothing-happened failure that is safe to retry.
func (c *Coordinator) Accept(ctx context.Context, donorID uint, requestID, note string) (*AcceptResult, error) {
	donor, err := c.donors.UserByID(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if donor.Role != models.RoleDonor {
		return nil, fmt.Errorf("%w: user %d is not a donor", store.ErrValidation, donorID)
	}

	req, err := c.requests.AddDonor(ctx, requestID, donorID, note)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := c.donors.RecordDonation(ctx, donorID, now); err != nil {
		if rbErr := c.requests.RemoveDonor(ctx, requestID, donorID); rbErr != nil {
			// Both writes failed in a way that left the donor on the
			// request without stats. Log loudly; the sweep of last resort
			// is manual reconciliation.
			c.logger.Error("acceptance compensation failed",
				zap.String("request_id", requestID),
				zap.Uint("donor_id", donorID),
				zap.NamedError("stats_error", err),
				zap.NamedError("rollback_error", rbErr))
			return nil, fmt.Errorf("donor stats update failed and rollback failed: %v (stats: %w)", rbErr, err)
		}
		c.logger.Warn("donor stats update failed, acceptance rolled back",
			zap.String("request_id", requestID),
			zap.Uint("donor_id", donorID),
			zap.Error(err))
		return nil, fmt.Errorf("donor stats update failed, nothing happened: %w", err)
	}

	c.logger.Info("donor accepted request",
		zap.String("request_id", requestID),
		zap.Uint("donor_id", donorID))

	return &AcceptResult{
		Request:        req,
		TotalDonations: donor.TotalDonations + 1,
		LastDonationAt: now,
	}, nil
}

// Decline removes the donor from the request's accepted set. Declining a
// request the donor never accepted is a no-op, so the call is idempotent.
func (c *Coordinator) Decline(ctx context.Context, donorID uint, requestID string) error {
	donor, err := c.donors.UserByID(ctx, donorID)
	if err != nil {
		return err
	}
	if donor.Role != models.RoleDonor {
		return fmt.Errorf("%w: user %d is not a donor", store.ErrValidation, donorID)
	}

	req, err := c.requests.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != models.StatusActive {
		return fmt.Errorf("%w: request is %s", store.ErrInvalidState, req.Status)
	}

	return c.requests.RemoveDonor(ctx, requestID, donorID)
}

// ChatContact is one active request the donor accepted, with enough
// patient detail to open the conversation.
type ChatContact struct {
	RequestID         string     `json:"request_id"`
	RoomID            string     `json:"room_id"`
	PatientID         uint       `json:"patient_id"`
	PatientName       string     `json:"patient_name"`
	PatientPhone      string     `json:"patient_phone"`
	PatientBloodGroup string     `json:"patient_blood_group"`
	BloodGroup        string     `json:"blood_group"`
	UnitsNeeded       int        `json:"units_needed"`
	Urgency           string     `json:"urgency"`
	HospitalName      string     `json:"hospital_name"`
	AcceptedAt        *time.Time `json:"accepted_at,omitempty"`
}

// AcceptedRequests lists the donor's active accepted requests with the
// derived room id for each conversation.
func (c *Coordinator) AcceptedRequests(ctx context.Context, donorID uint) ([]ChatContact, error) {
	reqs, err := c.requests.FindAcceptedByDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}

	contacts := make([]ChatContact, 0, len(reqs))
	for _, req := range reqs {
		contact := ChatContact{
			RequestID:    req.ID,
			PatientID:    req.PatientID,
			PatientName:  req.PatientName,
			BloodGroup:   req.BloodGroup,
			UnitsNeeded:  req.UnitsNeeded,
			Urgency:      req.Urgency,
			HospitalName: req.HospitalName,
		}
		for _, d := range req.AcceptedDonors {
			if d.DonorID == donorID {
				at := d.AcceptedAt
				contact.AcceptedAt = &at
				break
			}
		}
		if roomID, err := chat.RoomIDForUsers(req.PatientID, donorID); err == nil {
			contact.RoomID = roomID
		}
		if patient, err := c.donors.UserByID(ctx, req.PatientID); err == nil {
			contact.PatientPhone = patient.Phone
			contact.PatientBloodGroup = patient.BloodGroup
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}
