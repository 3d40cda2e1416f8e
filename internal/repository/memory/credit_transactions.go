package memory

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
)

type creditTransactionRepository struct {
	store *Store
}

func (r *creditTransactionRepository) Create(ctx context.Context, tx *domain.CreditTransaction) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	tx.ID = s.newID()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.transactions.put(ctx, s, tx.ID, *tx)
	return nil
}

func (r *creditTransactionRepository) Update(ctx context.Context, tx *domain.CreditTransaction) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.transactions.get(tx.ID)
	if !ok {
		return repository.ErrNotFound
	}
	tx.FromOrganizationID = current.FromOrganizationID
	tx.ToOrganizationID = current.ToOrganizationID
	tx.InitiatedBy = current.InitiatedBy
	tx.CreatedAt = current.CreatedAt
	tx.UpdatedAt = s.now()
	s.transactions.put(ctx, s, tx.ID, *tx)
	return nil
}

func (r *creditTransactionRepository) GetByID(_ context.Context, id string) (*domain.CreditTransaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tx, nil
}

// GetForUpdate is a plain read here. Exclusion comes from the ledger locker.
func (r *creditTransactionRepository) GetForUpdate(ctx context.Context, id string) (*domain.CreditTransaction, error) {
	return r.GetByID(ctx, id)
}

func (r *creditTransactionRepository) List(_ context.Context, filter repository.TransactionFilter) ([]domain.CreditTransaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.transactions.ordered(func(t domain.CreditTransaction) bool {
		if filter.OrganizationID != nil && !t.Involves(*filter.OrganizationID) {
			return false
		}
		if filter.FromOrganizationID != nil && t.FromOrganizationID != *filter.FromOrganizationID {
			return false
		}
		if filter.ToOrganizationID != nil && t.ToOrganizationID != *filter.ToOrganizationID {
			return false
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			return false
		}
		return true
	})
	slices.Reverse(txs)
	return paginate(txs, filter.Page), nil
}

func (r *creditTransactionRepository) MarketStats(_ context.Context) (domain.MarketStats, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		stats    domain.MarketStats
		priceSum decimal.Decimal
	)
	for _, tx := range s.transactions.rows {
		if tx.Status != domain.TransactionCompleted {
			continue
		}
		stats.TotalTransactions++
		stats.TotalCreditsTraded += tx.Credits
		priceSum = priceSum.Add(tx.PricePerCredit)
		stats.TotalValue = stats.TotalValue.Add(tx.TotalAmount())
	}
	if stats.TotalTransactions > 0 {
		stats.AveragePrice = priceSum.Div(decimal.NewFromInt(stats.TotalTransactions))
	}
	return stats, nil
}
