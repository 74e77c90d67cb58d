package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bloodlink/bloodlink_backend/models"
	"github.com/bloodlink/bloodlink_backend/store"
)

// MemoryDirectory is an in-memory Directory for tests and dev mode.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[uint]*models.User
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[uint]*models.User)}
}

// Put inserts or replaces a user record.
func (d *MemoryDirectory) Put(user models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = &user
}

func (d *MemoryDirectory) UserByID(ctx context.Context, id uint) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", store.ErrNotFound, id)
	}
	out := *user
	return &out, nil
}

func (d *MemoryDirectory) AvailableDonorsByBloodGroup(ctx context.Context, group string) ([]models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []models.User
	for _, u := range d.users {
		if u.Role == models.RoleDonor && u.BloodGroup == group && u.IsAvailable {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) RecordDonation(ctx context.Context, donorID uint, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[donorID]
	if !ok || user.Role != models.RoleDonor {
		return fmt.Errorf("%w: donor %d", store.ErrNotFound, donorID)
	}
	user.TotalDonations++
	user.LastDonationAt = &at
	return nil
}

func (d *MemoryDirectory) SetAvailability(ctx context.Context, donorID uint, available bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	user, ok := d.users[donorID]
	if !ok || user.Role != models.RoleDonor {
		return fmt.Errorf("%w: donor %d", store.ErrNotFound, donorID)
	}
	user.IsAvailable = available
	return nil
}
