package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() CreateRequestInput {
	return CreateRequestInput{
		PatientID:       1,
		PatientName:     "Asha Rao",
		BloodGroup:      "O-",
		UnitsNeeded:     2,
		Urgency:         models.UrgencyCritical,
		HospitalName:    "City General",
		HospitalAddress: "12 Main St",
	}
}

func TestCreateRequest(t *testing.T) {
	s := NewMemoryStore()

	before := time.Now()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.StatusActive, req.Status)
	assert.Equal(t, 4, req.Priority)
	assert.Equal(t, 2, req.TotalRequiredDonors)
	assert.Equal(t, 0, req.TotalAcceptedDonors)

	// Critical requests expire 7 days out.
	expectedExpiry := before.Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, expectedExpiry, req.ExpiresAt, time.Minute)
}

func TestCreateRequestExpiryForNonCritical(t *testing.T) {
	s := NewMemoryStore()

	in := validInput()
	in.Urgency = models.UrgencyMedium
	req, err := s.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 2, req.Priority)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), req.ExpiresAt, time.Minute)
}

func TestCreateRequestValidation(t *testing.T) {
	s := NewMemoryStore()

	cases := []struct {
		name   string
		mutate func(*CreateRequestInput)
	}{
		{"missing patient", func(in *CreateRequestInput) { in.PatientID = 0 }},
		{"missing patient name", func(in *CreateRequestInput) { in.PatientName = "" }},
		{"bad blood group", func(in *CreateRequestInput) { in.BloodGroup = "Q+" }},
		{"zero units", func(in *CreateRequestInput) { in.UnitsNeeded = 0 }},
		{"too many units", func(in *CreateRequestInput) { in.UnitsNeeded = 11 }},
		{"bad urgency", func(in *CreateRequestInput) { in.Urgency = "urgent" }},
		{"missing hospital", func(in *CreateRequestInput) { in.HospitalName = "" }},
		{"missing address", func(in *CreateRequestInput) { in.HospitalAddress = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := s.Create(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAddDonor(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	updated, err := s.AddDonor(context.Background(), req.ID, 7, "on my way")
	require.NoError(t, err)

	require.Len(t, updated.AcceptedDonors, 1)
	assert.Equal(t, uint(7), updated.AcceptedDonors[0].DonorID)
	assert.Equal(t, models.DonorAccepted, updated.AcceptedDonors[0].Status)
	assert.Equal(t, "on my way", updated.AcceptedDonors[0].Notes)
	assert.Equal(t, 1, updated.TotalAcceptedDonors)
}

func TestAddDonorDuplicateConflict(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = s.AddDonor(context.Background(), req.ID, 7, "")
	require.NoError(t, err)

	_, err = s.AddDonor(context.Background(), req.ID, 7, "")
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, got.AcceptedDonors, 1)
	assert.Equal(t, 1, got.TotalAcceptedDonors)
}

func TestAddDonorUnknownRequest(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.AddDonor(context.Background(), "nope", 7, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddDonorNonActiveRequest(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.NoError(t, s.Cancel(context.Background(), req.ID, 1, "changed plans"))

	_, err = s.AddDonor(context.Background(), req.ID, 7, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

// Over-acceptance past the required donor count is allowed; the required
// count is a target for the caller, not a cap.
func TestAddDonorBeyondRequiredCount(t *testing.T) {
	s := NewMemoryStore()
	in := validInput()
	in.UnitsNeeded = 1
	req, err := s.Create(context.Background(), in)
	require.NoError(t, err)

	for donor := uint(1); donor <= 3; donor++ {
		_, err := s.AddDonor(context.Background(), req.ID, donor, "")
		require.NoError(t, err)
	}

	got, err := s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalAcceptedDonors)
	assert.True(t, got.IsFulfilled())
}

func TestRemoveDonorIdempotent(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = s.AddDonor(context.Background(), req.ID, 7, "")
	require.NoError(t, err)

	// Removing a donor that never accepted succeeds and changes nothing.
	require.NoError(t, s.RemoveDonor(context.Background(), req.ID, 99))

	got, err := s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, got.AcceptedDonors, 1)

	// Removing twice is also fine.
	require.NoError(t, s.RemoveDonor(context.Background(), req.ID, 7))
	require.NoError(t, s.RemoveDonor(context.Background(), req.ID, 7))

	got, err = s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AcceptedDonors)
	assert.Equal(t, 0, got.TotalAcceptedDonors)
}

func TestConcurrentDistinctDonorAccepts(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AddDonor(context.Background(), req.ID, uint(i+1), "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoErrorf(t, err, "donor %d", i+1)
	}

	got, err := s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, got.AcceptedDonors, n)
	assert.Equal(t, n, got.TotalAcceptedDonors)

	seen := make(map[uint]bool)
	for _, d := range got.AcceptedDonors {
		assert.False(t, seen[d.DonorID], "duplicate entry for donor %d", d.DonorID)
		seen[d.DonorID] = true
	}
}

func TestCancel(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, s.Cancel(context.Background(), req.ID, 1, "no longer needed"))

	got, err := s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, uint(1), *got.CancelledBy)
	assert.Equal(t, "no longer needed", got.CancellationReason)

	// A second cancel attempts a transition out of a terminal status.
	err = s.Cancel(context.Background(), req.ID, 1, "again")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestMarkFulfilled(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, s.MarkFulfilled(context.Background(), req.ID))

	got, err := s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFulfilled, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestNoTransitionOutOfTerminalStatus(t *testing.T) {
	s := NewMemoryStore()

	terminal := []func(id string) error{
		func(id string) error { return s.Cancel(context.Background(), id, 1, "r") },
		func(id string) error { return s.MarkFulfilled(context.Background(), id) },
	}

	for _, enter := range terminal {
		req, err := s.Create(context.Background(), validInput())
		require.NoError(t, err)
		require.NoError(t, enter(req.ID))

		assert.ErrorIs(t, s.Cancel(context.Background(), req.ID, 1, "r"), ErrInvalidState)
		assert.ErrorIs(t, s.MarkFulfilled(context.Background(), req.ID), ErrInvalidState)
		_, err = s.AddDonor(context.Background(), req.ID, 7, "")
		assert.ErrorIs(t, err, ErrInvalidState)
	}
}

func TestFindByBloodGroupOrdering(t *testing.T) {
	s := NewMemoryStore()

	mk := func(urgency string) string {
		in := validInput()
		in.Urgency = urgency
		req, err := s.Create(context.Background(), in)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct creation times
		return req.ID
	}

	lowOld := mk(models.UrgencyLow)
	criticalOld := mk(models.UrgencyCritical)
	criticalNew := mk(models.UrgencyCritical)

	reqs, err := s.FindByBloodGroup(context.Background(), "O-", models.StatusActive)
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	// Urgency first, then recency.
	assert.Equal(t, criticalNew, reqs[0].ID)
	assert.Equal(t, criticalOld, reqs[1].ID)
	assert.Equal(t, lowOld, reqs[2].ID)
}

func TestFindNearby(t *testing.T) {
	s := NewMemoryStore()

	mk := func(lat, lng float64) string {
		in := validInput()
		in.Latitude = &lat
		in.Longitude = &lng
		req, err := s.Create(context.Background(), in)
		require.NoError(t, err)
		return req.ID
	}

	near := mk(12.9716, 77.5946)   // Bangalore
	farther := mk(12.9352, 77.6245) // ~5.5 km away
	_ = mk(28.6139, 77.2090)        // Delhi, well outside

	// Request without coordinates never matches.
	_, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	reqs, err := s.FindNearby(context.Background(), 12.9716, 77.5946, 50000)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, near, reqs[0].ID)
	assert.Equal(t, farther, reqs[1].ID)
}

func TestFindNearbyExcludesNonActive(t *testing.T) {
	s := NewMemoryStore()

	lat, lng := 12.9716, 77.5946
	in := validInput()
	in.Latitude = &lat
	in.Longitude = &lng
	req, err := s.Create(context.Background(), in)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(context.Background(), req.ID, 1, "r"))

	reqs, err := s.FindNearby(context.Background(), lat, lng, 50000)
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestExpireOverdue(t *testing.T) {
	s := NewMemoryStore()

	fresh, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	stale, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	// Sweep as of a point past the stale request's expiry.
	n, err := s.ExpireOverdue(context.Background(), stale.ExpiresAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Both were critical with the same window, so both expired; recreate
	// one and sweep with a clock before its expiry.
	again, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	n, err = s.ExpireOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.Get(context.Background(), again.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	got, err = s.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)

	// Expired requests stop appearing in matching queries.
	reqs, err := s.FindByBloodGroup(context.Background(), "O-", models.StatusActive)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, again.ID, reqs[0].ID)
}

func TestFindAcceptedByDonor(t *testing.T) {
	s := NewMemoryStore()

	r1, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)
	r2, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	_, err = s.AddDonor(context.Background(), r1.ID, 7, "")
	require.NoError(t, err)
	_, err = s.AddDonor(context.Background(), r2.ID, 8, "")
	require.NoError(t, err)

	reqs, err := s.FindAcceptedByDonor(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, r1.ID, reqs[0].ID)
}

func TestIncrementViewCount(t *testing.T) {
	s := NewMemoryStore()
	req, err := s.Create(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, s.IncrementViewCount(context.Background(), []string{req.ID, "unknown"}))

	got, err := s.Get(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)
}
