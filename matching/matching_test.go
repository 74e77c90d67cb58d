package matching

import (
	"context"
	"testing"
	"time"

	"github.com/bloodlink/bloodlink_backend/directory"
	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/bloodlink/bloodlink_backend/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFixture(t *testing.T) (*Service, *store.MemoryStore, *directory.MemoryDirectory) {
	t.Helper()
	requests := store.NewMemoryStore()
	donors := directory.NewMemoryDirectory()
	return NewService(requests, donors, zap.NewNop()), requests, donors
}

func createRequest(t *testing.T, s *store.MemoryStore, urgency string, lat, lng *float64) *models.BloodRequest {
	t.Helper()
	req, err := s.Create(context.Background(), store.CreateRequestInput{
		PatientID:       1,
		PatientName:     "Asha Rao",
		BloodGroup:      "B+",
		UnitsNeeded:     1,
		Urgency:         urgency,
		HospitalName:    "City General",
		HospitalAddress: "12 Main St",
		Latitude:        lat,
		Longitude:       lng,
	})
	require.NoError(t, err)
	return req
}

func TestRequestsByBloodGroupOrdering(t *testing.T) {
	svc, requests, _ := newFixture(t)

	low := createRequest(t, requests, models.UrgencyLow, nil, nil)
	time.Sleep(2 * time.Millisecond)
	critical := createRequest(t, requests, models.UrgencyCritical, nil, nil)

	got, err := svc.RequestsByBloodGroup(context.Background(), "B+", models.StatusActive)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, critical.ID, got[0].ID)
	assert.Equal(t, low.ID, got[1].ID)
}

func TestRequestsByBloodGroupRejectsBadGroup(t *testing.T) {
	svc, _, _ := newFixture(t)

	_, err := svc.RequestsByBloodGroup(context.Background(), "X+", models.StatusActive)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestRequestsByBloodGroupCountsViews(t *testing.T) {
	svc, requests, _ := newFixture(t)

	req := createRequest(t, requests, models.UrgencyHigh, nil, nil)

	_, err := svc.RequestsByBloodGroup(context.Background(), "B+", models.StatusActive)
	require.NoError(t, err)

	got, err := requests.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)
}

func TestNearbyRequestsSortsByDistance(t *testing.T) {
	svc, requests, donors := newFixture(t)

	lat, lng := 12.9716, 77.5946
	donors.Put(models.User{ID: 7, Role: models.RoleDonor, BloodGroup: "B+", Latitude: &lat, Longitude: &lng, IsAvailable: true})

	nearLat, nearLng := 12.9720, 77.5950
	farLat, farLng := 12.9352, 77.6245
	near := createRequest(t, requests, models.UrgencyMedium, &nearLat, &nearLng)
	far := createRequest(t, requests, models.UrgencyMedium, &farLat, &farLng)

	got, err := svc.NearbyRequests(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, near.ID, got[0].ID)
	assert.Equal(t, far.ID, got[1].ID)
}

func TestNearbyRequestsRespectsMaxDistance(t *testing.T) {
	svc, requests, donors := newFixture(t)

	lat, lng := 12.9716, 77.5946
	donors.Put(models.User{ID: 7, Role: models.RoleDonor, BloodGroup: "B+", Latitude: &lat, Longitude: &lng, IsAvailable: true})

	farLat, farLng := 12.9352, 77.6245 // ~5.5 km away
	createRequest(t, requests, models.UrgencyMedium, &farLat, &farLng)

	got, err := svc.NearbyRequests(context.Background(), 7, 1000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// A donor with no coordinates on file falls back to the blood-group
// match list instead of failing.
func TestNearbyRequestsDegradesWithoutCoordinates(t *testing.T) {
	svc, requests, donors := newFixture(t)

	donors.Put(models.User{ID: 7, Role: models.RoleDonor, BloodGroup: "B+", IsAvailable: true})
	req := createRequest(t, requests, models.UrgencyHigh, nil, nil)

	got, err := svc.NearbyRequests(context.Background(), 7, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, req.ID, got[0].ID)
}

func TestNearbyRequestsNoCoordinatesNoBloodGroup(t *testing.T) {
	svc, _, donors := newFixture(t)

	donors.Put(models.User{ID: 7, Role: models.RoleDonor, IsAvailable: true})

	got, err := svc.NearbyRequests(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchingDonorsMasksPhones(t *testing.T) {
	svc, _, donors := newFixture(t)

	donors.Put(models.User{ID: 7, Name: "Dev Mehta", Role: models.RoleDonor, BloodGroup: "B+", Phone: "5551234567", IsAvailable: true})
	donors.Put(models.User{ID: 8, Name: "Offline", Role: models.RoleDonor, BloodGroup: "B+", IsAvailable: false})
	donors.Put(models.User{ID: 9, Name: "Other Group", Role: models.RoleDonor, BloodGroup: "A-", IsAvailable: true})

	got, err := svc.MatchingDonors(context.Background(), "B+")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dev Mehta", got[0].Name)
	assert.Equal(t, "555123***", got[0].Phone)
}
