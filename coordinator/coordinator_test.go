package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/bloodlink/bloodlink_backend/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flakyDirectory wraps the memory directory and fails RecordDonation on
// demand, to exercise the compensation path.
type flakyDirectory struct {
	*directory.MemoryDirectory
	failRecord bool
}

func (d *flakyDirectory) RecordDonation(ctx context.Context, donorID uint, at time.Time) error {
	if d.failRecord {
		return errors.New("simulated stats write failure")
	}
	return d.MemoryDirectory.RecordDonation(ctx, donorID, at)
}

func newFixture(t *testing.T) (*Coordinator, *store.MemoryStore, *flakyDirectory, string) {
	t.Helper()

	requests := store.NewMemoryStore()
	donors := &flakyDirectory{MemoryDirectory: directory.NewMemoryDirectory()}

	donors.Put(models.User{ID: 1, Name: "Asha Rao", Role: models.RolePatient, BloodGroup: "O-", Phone: "5551234567"})
	donors.Put(models.User{ID: 7, Name: "Dev Mehta", Role: models.RoleDonor, BloodGroup: "O-", IsAvailable: true})

	req, err := requests.Create(context.Background(), store.CreateRequestInput{
		PatientID:       1,
		PatientName:     "Asha Rao",
		BloodGroup:      "O-",
		UnitsNeeded:     2,
		Urgency:         models.UrgencyCritical,
		HospitalName:    "City General",
		HospitalAddress: "12 Main St",
	})
	require.NoError(t, err)

	return New(requests, donors, zap.NewNop()), requests, donors, req.ID
}

func TestAcceptUpdatesRequestAndDonorStats(t *testing.T) {
	co, requests, donors, requestID := newFixture(t)

	result, err := co.Accept(context.Background(), 7, requestID, "on my way")
	require.NoError(t, err)

	require.Len(t, result.Request.AcceptedDonors, 1)
	assert.Equal(t, uint(7), result.Request.AcceptedDonors[0].DonorID)
	assert.Equal(t, models.DonorAccepted, result.Request.AcceptedDonors[0].Status)
	assert.Equal(t, 1, result.TotalDonations)

	donor, err := donors.UserByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, donor.TotalDonations)
	require.NotNil(t, donor.LastDonationAt)

	got, err := requests.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalAcceptedDonors)
}

func TestAcceptTwiceConflicts(t *testing.T) {
	co, requests, donors, requestID := newFixture(t)

	_, err := co.Accept(context.Background(), 7, requestID, "")
	require.NoError(t, err)

	_, err = co.Accept(context.Background(), 7, requestID, "")
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := requests.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Len(t, got.AcceptedDonors, 1)

	// The failed second accept must not bump the stats again.
	donor, err := donors.UserByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, donor.TotalDonations)
}

func TestAcceptRequiresDonorRole(t *testing.T) {
	co, _, _, requestID := newFixture(t)

	_, err := co.Accept(context.Background(), 1, requestID, "")
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestAcceptUnknownDonor(t *testing.T) {
	co, _, _, requestID := newFixture(t)

	_, err := co.Accept(context.Background(), 99, requestID, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// A failed stats write rolls the request append back: the caller sees a
// nothing-happened failure and may retry safely.
func TestAcceptCompensatesOnStatsFailure(t *testing.T) {
	co, requests, donors, requestID := newFixture(t)
	donors.failRecord = true

	_, err := co.Accept(context.Background(), 7, requestID, "")
	require.Error(t, err)

	got, err := requests.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Empty(t, got.AcceptedDonors)
	assert.Equal(t, 0, got.TotalAcceptedDonors)

	donor, err := donors.UserByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, donor.TotalDonations)

	// Retry after the transient failure clears.
	donors.failRecord = false
	_, err = co.Accept(context.Background(), 7, requestID, "")
	require.NoError(t, err)
}

func TestDeclineIsIdempotent(t *testing.T) {
	co, requests, _, requestID := newFixture(t)

	_, err := co.Accept(context.Background(), 7, requestID, "")
	require.NoError(t, err)

	require.NoError(t, co.Decline(context.Background(), 7, requestID))
	require.NoError(t, co.Decline(context.Background(), 7, requestID))

	got, err := requests.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Empty(t, got.AcceptedDonors)
}

func TestDeclineNonActiveRequest(t *testing.T) {
	co, requests, _, requestID := newFixture(t)

	require.NoError(t, requests.Cancel(context.Background(), requestID, 1, "r"))

	err := co.Decline(context.Background(), 7, requestID)
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestAcceptedRequestsDeriveRoomIDs(t *testing.T) {
	co, _, _, requestID := newFixture(t)

	_, err := co.Accept(context.Background(), 7, requestID, "")
	require.NoError(t, err)

	contacts, err := co.AcceptedRequests(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, contacts, 1)

	contact := contacts[0]
	assert.Equal(t, requestID, contact.RequestID)
	assert.Equal(t, uint(1), contact.PatientID)
	assert.Equal(t, "Asha Rao", contact.PatientName)
	assert.Equal(t, "5551234567", contact.PatientPhone)
	// Patient id 1, donor id 7: sorted as strings.
	assert.Equal(t, "1_7", contact.RoomID)
	require.NotNil(t, contact.AcceptedAt)
}
