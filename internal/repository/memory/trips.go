package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
)

type tripRepository struct {
	store *Store
}

func (r *tripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	trip.ID = s.newID()
	trip.CreatedAt = now
	trip.UpdatedAt = now
	s.trips.put(ctx, s, trip.ID, *trip)
	return nil
}

func (r *tripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.trips.get(trip.ID)
	if !ok {
		return repository.ErrNotFound
	}
	// owner and organization are fixed at creation
	trip.UserID = current.UserID
	trip.OrganizationID = current.OrganizationID
	trip.CreatedAt = current.CreatedAt
	trip.UpdatedAt = s.now()
	s.trips.put(ctx, s, trip.ID, *trip)
	return nil
}

func (r *tripRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.trips.remove(ctx, id) {
		return repository.ErrNotFound
	}
	return nil
}

func (r *tripRepository) GetByID(_ context.Context, id string) (*domain.Trip, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	trip, ok := s.trips.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &trip, nil
}

// GetForUpdate is a plain read here. Exclusion comes from the ledger locker.
func (r *tripRepository) GetForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	return r.GetByID(ctx, id)
}

func (r *tripRepository) List(_ context.Context, filter repository.TripFilter) ([]domain.Trip, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	trips := s.trips.ordered(func(t domain.Trip) bool {
		if filter.UserID != nil && t.UserID != *filter.UserID {
			return false
		}
		if filter.OrganizationID != nil && t.OrganizationID != *filter.OrganizationID {
			return false
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			return false
		}
		return true
	})
	sort.SliceStable(trips, func(i, j int) bool { return trips[i].Date.After(trips[j].Date) })
	return paginate(trips, filter.Page), nil
}
