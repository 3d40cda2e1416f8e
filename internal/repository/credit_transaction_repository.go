package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// TransactionFilter narrows credit transaction listings.
type TransactionFilter struct {
	// OrganizationID matches either side of the transfer.
	OrganizationID     *string
	ToOrganizationID   *string
	FromOrganizationID *string
	Statuses           []domain.TransactionStatus
	Page               Page
}

// CreditTransactionRepository persists credit transfers.
type CreditTransactionRepository interface {
	Create(ctx context.Context, tx *domain.CreditTransaction) error
	Update(ctx context.Context, tx *domain.CreditTransaction) error
	GetByID(ctx context.Context, id string) (*domain.CreditTransaction, error)
	// GetForUpdate loads the transaction and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.CreditTransaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]domain.CreditTransaction, error)
	// MarketStats aggregates COMPLETED transactions.
	MarketStats(ctx context.Context) (domain.MarketStats, error)
}

type creditTransactionRepository struct {
	pool *pgxpool.Pool
}

// NewCreditTransactionRepository instantiates repository.
func NewCreditTransactionRepository(pool *pgxpool.Pool) CreditTransactionRepository {
	return &creditTransactionRepository{pool: pool}
}

const transactionColumns = `id, from_organization_id, to_organization_id, credits, price_per_credit, status,
               initiated_by, approved_by, notes, payment_method, payment_transaction_id, payment_status,
               created_at, updated_at`

func (r *creditTransactionRepository) Create(ctx context.Context, tx *domain.CreditTransaction) error {
	const query = `
        INSERT INTO credit_transactions (from_organization_id, to_organization_id, credits, price_per_credit, total_amount,
            status, initiated_by, approved_by, notes, payment_method, payment_transaction_id, payment_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		tx.FromOrganizationID,
		tx.ToOrganizationID,
		tx.Credits,
		tx.PricePerCredit,
		tx.TotalAmount(),
		tx.Status,
		tx.InitiatedBy,
		tx.ApprovedBy,
		tx.Notes,
		tx.PaymentDetails.Method,
		tx.PaymentDetails.TransactionID,
		tx.PaymentDetails.Status,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
}

func (r *creditTransactionRepository) Update(ctx context.Context, tx *domain.CreditTransaction) error {
	const query = `
        UPDATE credit_transactions SET credits=$1, price_per_credit=$2, total_amount=$3, status=$4, approved_by=$5,
            notes=$6, payment_method=$7, payment_transaction_id=$8, payment_status=$9, updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		tx.Credits,
		tx.PricePerCredit,
		tx.TotalAmount(),
		tx.Status,
		tx.ApprovedBy,
		tx.Notes,
		tx.PaymentDetails.Method,
		tx.PaymentDetails.TransactionID,
		tx.PaymentDetails.Status,
		tx.ID,
	).Scan(&tx.UpdatedAt)
}

func (r *creditTransactionRepository) GetByID(ctx context.Context, id string) (*domain.CreditTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM credit_transactions WHERE id=$1`
	return scanTransaction(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *creditTransactionRepository) GetForUpdate(ctx context.Context, id string) (*domain.CreditTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM credit_transactions WHERE id=$1 FOR UPDATE`
	tx, err := scanTransaction(querier(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, TranslatePgError("transaction", err)
	}
	return tx, nil
}

func (r *creditTransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]domain.CreditTransaction, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("(from_organization_id=$%d OR to_organization_id=$%d)", len(args), len(args)))
	}
	if filter.FromOrganizationID != nil {
		args = append(args, *filter.FromOrganizationID)
		clauses = append(clauses, fmt.Sprintf("from_organization_id=$%d", len(args)))
	}
	if filter.ToOrganizationID != nil {
		args = append(args, *filter.ToOrganizationID)
		clauses = append(clauses, fmt.Sprintf("to_organization_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	page := filter.Page.Normalize()
	query := fmt.Sprintf(`SELECT %s FROM credit_transactions WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		transactionColumns, strings.Join(clauses, " AND "), page.Limit, page.Offset)

	rows, err := querier(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CreditTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tx)
	}
	return result, rows.Err()
}

func (r *creditTransactionRepository) MarketStats(ctx context.Context) (domain.MarketStats, error) {
	const query = `
        SELECT COUNT(*),
               COALESCE(SUM(credits), 0),
               COALESCE(AVG(price_per_credit), 0),
               COALESCE(SUM(credits * price_per_credit), 0)
        FROM credit_transactions WHERE status=$1`

	var stats domain.MarketStats
	var avg, total decimal.Decimal
	if err := querier(ctx, r.pool).QueryRow(ctx, query, domain.TransactionCompleted).Scan(
		&stats.TotalTransactions,
		&stats.TotalCreditsTraded,
		&avg,
		&total,
	); err != nil {
		return domain.MarketStats{}, err
	}
	stats.AveragePrice = avg
	stats.TotalValue = total
	return stats, nil
}

func scanTransaction(row pgx.Row) (*domain.CreditTransaction, error) {
	var (
		tx      domain.CreditTransaction
		credits int64
		price   decimal.Decimal
	)
	if err := row.Scan(
		&tx.ID,
		&tx.FromOrganizationID,
		&tx.ToOrganizationID,
		&credits,
		&price,
		&tx.Status,
		&tx.InitiatedBy,
		&tx.ApprovedBy,
		&tx.Notes,
		&tx.PaymentDetails.Method,
		&tx.PaymentDetails.TransactionID,
		&tx.PaymentDetails.Status,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return nil, err
	}
	tx.Reprice(credits, price)
	return &tx, nil
}
