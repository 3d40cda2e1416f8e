package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// LedgerEntryRepository appends balance mutation records.
type LedgerEntryRepository interface {
	Append(ctx context.Context, entry *domain.LedgerEntry) error
	ListByOrganization(ctx context.Context, orgID string, page Page) ([]domain.LedgerEntry, error)
}

type ledgerEntryRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerEntryRepository builds repository.
func NewLedgerEntryRepository(pool *pgxpool.Pool) LedgerEntryRepository {
	return &ledgerEntryRepository{pool: pool}
}

func (r *ledgerEntryRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	const query = `
        INSERT INTO ledger_entries (organization_id, operation, amount, source_type, source_id,
            total_after, available_after, traded_after)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		entry.OrganizationID,
		entry.Operation,
		entry.Amount,
		entry.SourceType,
		entry.SourceID,
		entry.BalanceAfter.Total,
		entry.BalanceAfter.Available,
		entry.BalanceAfter.Traded,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ledgerEntryRepository) ListByOrganization(ctx context.Context, orgID string, page Page) ([]domain.LedgerEntry, error) {
	page = page.Normalize()
	const query = `
        SELECT id, organization_id, operation, amount, source_type, source_id,
               total_after, available_after, traded_after, created_at
        FROM ledger_entries WHERE organization_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := querier(ctx, r.pool).Query(ctx, query, orgID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entry.Operation,
			&entry.Amount,
			&entry.SourceType,
			&entry.SourceID,
			&entry.BalanceAfter.Total,
			&entry.BalanceAfter.Available,
			&entry.BalanceAfter.Traded,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
