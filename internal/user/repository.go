package user

import (
	"context"
	"errors"
	"sync"
)

// Repository errors.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

// Repository defines the interface for profile persistence.
type Repository interface {
	// Get retrieves the profile of a user.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Create stores a new profile. It fails with ErrProfileExists if one is present.
	Create(ctx context.Context, profile *Profile) error

	// Delete removes a profile. Deleting an absent profile is not an error.
	Delete(ctx context.Context, userID string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for local development and tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
	}
}

// Get retrieves the profile of a user.
func (r *InMemoryRepository) Get(_ context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return copyProfile(p), nil
}

// Create stores a new profile.
func (r *InMemoryRepository) Create(_ context.Context, profile *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.UserID]; ok {
		return ErrProfileExists
	}
	r.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

// Delete removes a profile.
func (r *InMemoryRepository) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.profiles, userID)
	return nil
}
