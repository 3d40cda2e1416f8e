package memory

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
)

type userRepository struct {
	store *Store
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users.rows {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}

	now := s.now()
	user.ID = s.newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users.put(ctx, s, user.ID, *user)
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users.get(user.ID)
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range s.users.rows {
		if id != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}

	// the credit counter only moves through AddCarbonCredits
	user.CarbonCredits = current.CarbonCredits
	user.UpdatedAt = s.now()
	s.users.put(ctx, s, user.ID, *user)
	return nil
}

func (r *userRepository) AddCarbonCredits(ctx context.Context, userID string, amount decimal.Decimal) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users.get(userID)
	if !ok {
		return repository.ErrNotFound
	}
	user.CarbonCredits = user.CarbonCredits.Add(amount)
	user.UpdatedAt = s.now()
	s.users.put(ctx, s, userID, user)
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users.rows {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) ListByOrganization(_ context.Context, orgID string) ([]domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.users.ordered(func(u domain.User) bool { return u.BelongsTo(orgID) }), nil
}
