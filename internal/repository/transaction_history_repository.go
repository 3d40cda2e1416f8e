package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// TransactionHistoryRepository stores the audit trail of credit transactions.
type TransactionHistoryRepository interface {
	Create(ctx context.Context, history *domain.TransactionHistory) error
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.TransactionHistory, error)
}

type transactionHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionHistoryRepository builds repository.
func NewTransactionHistoryRepository(pool *pgxpool.Pool) TransactionHistoryRepository {
	return &transactionHistoryRepository{pool: pool}
}

func (r *transactionHistoryRepository) Create(ctx context.Context, history *domain.TransactionHistory) error {
	const query = `
        INSERT INTO credit_transaction_history (transaction_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		history.TransactionID,
		history.ChangedByID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *transactionHistoryRepository) ListByTransaction(ctx context.Context, transactionID string) ([]domain.TransactionHistory, error) {
	const query = `
        SELECT id, transaction_id, changed_by_id, change_type, old_value, new_value, created_at
        FROM credit_transaction_history WHERE transaction_id=$1 ORDER BY created_at ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TransactionHistory
	for rows.Next() {
		var history domain.TransactionHistory
		if err := rows.Scan(
			&history.ID,
			&history.TransactionID,
			&history.ChangedByID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
