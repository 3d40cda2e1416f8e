package memory

import (
	"context"
	"slices"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
)

type historyRepository struct {
	store *Store
}

func (r *historyRepository) Create(ctx context.Context, history *domain.TransactionHistory) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	history.ID = s.newID()
	history.CreatedAt = s.now()
	s.history.put(ctx, s, history.ID, *history)
	return nil
}

func (r *historyRepository) ListByTransaction(_ context.Context, transactionID string) ([]domain.TransactionHistory, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.history.ordered(func(h domain.TransactionHistory) bool {
		return h.TransactionID == transactionID
	}), nil
}

type ledgerEntryRepository struct {
	store *Store
}

func (r *ledgerEntryRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.newID()
	entry.CreatedAt = s.now()
	s.entries.put(ctx, s, entry.ID, *entry)
	return nil
}

func (r *ledgerEntryRepository) ListByOrganization(_ context.Context, orgID string, page repository.Page) ([]domain.LedgerEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries.ordered(func(e domain.LedgerEntry) bool { return e.OrganizationID == orgID })
	slices.Reverse(entries)
	return paginate(entries, page), nil
}
