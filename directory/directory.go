// Package directory exposes the user/donor lookups the matching and
// coordination layers need. It is the narrow interface onto user records:
// profile CRUD stays out of the core.
package directory

import (
	"context"
	"time"

	"github.com/bloodlink/bloodlink_backend/models"
)

// Directory reads donor/patient records and records donation stats.
type Directory interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)

	// AvailableDonorsByBloodGroup lists donors of the given group who are
	// currently marked available.
	AvailableDonorsByBloodGroup(ctx context.Context, group string) ([]models.User, error)

	// RecordDonation increments the donor's total donation count and moves
	// the last-donation timestamp forward.
	RecordDonation(ctx context.Context, donorID uint, at time.Time) error

	SetAvailability(ctx context.Context, donorID uint, available bool) error
}
