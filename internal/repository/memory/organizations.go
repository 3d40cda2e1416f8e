package memory

import (
	"context"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
)

type organizationRepository struct {
	store *Store
}

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	org.ID = s.newID()
	org.CreatedAt = now
	org.UpdatedAt = now
	s.orgs.put(ctx, s, org.ID, *org)
	return nil
}

func (r *organizationRepository) Update(ctx context.Context, org *domain.Organization) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orgs.get(org.ID)
	if !ok {
		return repository.ErrNotFound
	}
	current.Name = org.Name
	current.Address = org.Address
	current.Status = org.Status
	current.BankApproverID = org.BankApproverID
	current.UpdatedAt = s.now()
	s.orgs.put(ctx, s, org.ID, current)

	org.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *organizationRepository) UpdateBalance(ctx context.Context, orgID string, credits domain.CarbonCredits) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orgs.get(orgID)
	if !ok {
		return repository.ErrNotFound
	}
	current.CarbonCredits = credits
	current.UpdatedAt = s.now()
	s.orgs.put(ctx, s, orgID, current)
	return nil
}

func (r *organizationRepository) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &org, nil
}

// GetForUpdate is a plain read here. Row exclusion comes from the ledger locker.
func (r *organizationRepository) GetForUpdate(ctx context.Context, id string) (*domain.Organization, error) {
	return r.GetByID(ctx, id)
}

func (r *organizationRepository) ListByStatus(_ context.Context, status domain.ApprovalStatus, page repository.Page) ([]domain.Organization, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := s.orgs.ordered(func(o domain.Organization) bool { return o.Status == status })
	return paginate(orgs, page), nil
}
