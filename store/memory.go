package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory RequestStore guarded by a single RWMutex.
// It backs the test suites and doubles as a standalone dev mode; the
// postgres store is the production implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*models.BloodRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]*models.BloodRequest)}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateRequestInput) (*models.BloodRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	req := buildRequest(in, time.Now())
	req.ID = uuid.NewString()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	s.mu.Lock()
	s.requests[req.ID] = &req
	s.mu.Unlock()

	return cloneRequest(&req), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, id)
	}
	return cloneRequest(req), nil
}

func (s *MemoryStore) AddDonor(ctx context.Context, requestID string, donorID uint, note string) (*models.BloodRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if req.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}
	if req.HasDonor(donorID) {
		return nil, fmt.Errorf("%w: donor %d already accepted request %s", ErrConflict, donorID, requestID)
	}

	req.AcceptedDonors = append(req.AcceptedDonors, models.AcceptedDonor{
		RequestID:  requestID,
		DonorID:    donorID,
		Status:     models.DonorAccepted,
		Notes:      note,
		AcceptedAt: time.Now(),
	})
	req.TotalAcceptedDonors = len(req.AcceptedDonors)
	req.UpdatedAt = time.Now()

	return cloneRequest(req), nil
}

func (s *MemoryStore) RemoveDonor(ctx context.Context, requestID string, donorID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}

	kept := req.AcceptedDonors[:0]
	for _, d := range req.AcceptedDonors {
		if d.DonorID != donorID {
			kept = append(kept, d)
		}
	}
	req.AcceptedDonors = kept
	req.TotalAcceptedDonors = len(req.AcceptedDonors)
	req.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Cancel(ctx context.Context, requestID string, actorID uint, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if req.Status != models.StatusActive {
		return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}

	now := time.Now()
	req.Status = models.StatusCancelled
	req.CancelledAt = &now
	req.CancelledBy = &actorID
	req.CancellationReason = reason
	req.UpdatedAt = now
	return nil
}

func (s *MemoryStore) MarkFulfilled(ctx context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	if req.Status != models.StatusActive {
		return fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}

	now := time.Now()
	req.Status = models.StatusFulfilled
	req.CompletedAt = &now
	req.UpdatedAt = now
	return nil
}

func (s *MemoryStore) FindByPatient(ctx context.Context, patientID uint, statuses []string) ([]models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.BloodRequest
	for _, req := range s.requests {
		if req.PatientID != patientID {
			continue
		}
		for _, st := range statuses {
			if req.Status == st {
				out = append(out, *cloneRequest(req))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) FindByBloodGroup(ctx context.Context, group, status string) ([]models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.BloodRequest
	for _, req := range s.requests {
		if req.BloodGroup == group && req.Status == status {
			out = append(out, *cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) FindNearby(ctx context.Context, lat, lng, maxDistanceMeters float64) ([]models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type withDistance struct {
		req  models.BloodRequest
		dist float64
	}

	var candidates []withDistance
	for _, req := range s.requests {
		if req.Status != models.StatusActive || req.Latitude == nil || req.Longitude == nil {
			continue
		}
		d := haversineMeters(lat, lng, *req.Latitude, *req.Longitude)
		if d <= maxDistanceMeters {
			candidates = append(candidates, withDistance{req: *cloneRequest(req), dist: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	out := make([]models.BloodRequest, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.req)
	}
	return out, nil
}

func (s *MemoryStore) FindAcceptedByDonor(ctx context.Context, donorID uint) ([]models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.BloodRequest
	for _, req := range s.requests {
		if req.Status == models.StatusActive && req.HasDonor(donorID) {
			out = append(out, *cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) IncrementViewCount(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if req, ok := s.requests[id]; ok {
			req.ViewCount++
		}
	}
	return nil
}

func (s *MemoryStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, req := range s.requests {
		if req.Status == models.StatusActive && now.After(req.ExpiresAt) {
			req.Status = models.StatusExpired
			req.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func cloneRequest(req *models.BloodRequest) *models.BloodRequest {
	out := *req
	out.AcceptedDonors = make([]models.AcceptedDonor, len(req.AcceptedDonors))
	copy(out.AcceptedDonors, req.AcceptedDonors)
	return &out
}
