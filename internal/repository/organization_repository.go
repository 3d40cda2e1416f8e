package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// OrganizationRepository persists organizations and their balances.
type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	// Update writes profile and status fields. Balances are only written by UpdateBalance.
	Update(ctx context.Context, org *domain.Organization) error
	UpdateBalance(ctx context.Context, orgID string, credits domain.CarbonCredits) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	// GetForUpdate loads the organization and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Organization, error)
	ListByStatus(ctx context.Context, status domain.ApprovalStatus, page Page) ([]domain.Organization, error)
}

type organizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository returns a Postgres-backed implementation.
func NewOrganizationRepository(pool *pgxpool.Pool) OrganizationRepository {
	return &organizationRepository{pool: pool}
}

const organizationColumns = `id, name, address, admin_id, status, credits_total, credits_available, credits_traded,
               bank_approver_id, created_at, updated_at`

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	const query = `
        INSERT INTO organizations (name, address, admin_id, status, credits_total, credits_available, credits_traded)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	err := querier(ctx, r.pool).QueryRow(ctx, query,
		org.Name,
		org.Address,
		org.AdminID,
		org.Status,
		org.CarbonCredits.Total,
		org.CarbonCredits.Available,
		org.CarbonCredits.Traded,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	return TranslatePgError("organization", err)
}

func (r *organizationRepository) Update(ctx context.Context, org *domain.Organization) error {
	const query = `
        UPDATE organizations SET name=$1, address=$2, status=$3, bank_approver_id=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`

	err := querier(ctx, r.pool).QueryRow(ctx, query,
		org.Name,
		org.Address,
		org.Status,
		org.BankApproverID,
		org.ID,
	).Scan(&org.UpdatedAt)
	return TranslatePgError("organization", err)
}

func (r *organizationRepository) UpdateBalance(ctx context.Context, orgID string, credits domain.CarbonCredits) error {
	const query = `
        UPDATE organizations SET credits_total=$1, credits_available=$2, credits_traded=$3, updated_at=NOW()
        WHERE id=$4`

	cmd, err := querier(ctx, r.pool).Exec(ctx, query,
		credits.Total,
		credits.Available,
		credits.Traded,
		orgID,
	)
	if err != nil {
		return TranslatePgError("organization", err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id=$1`
	return scanOrganization(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *organizationRepository) GetForUpdate(ctx context.Context, id string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id=$1 FOR UPDATE`
	org, err := scanOrganization(querier(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, TranslatePgError("organization", err)
	}
	return org, nil
}

func (r *organizationRepository) ListByStatus(ctx context.Context, status domain.ApprovalStatus, page Page) ([]domain.Organization, error) {
	page = page.Normalize()
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE status=$1
        ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := querier(ctx, r.pool).Query(ctx, query, status, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *org)
	}
	return result, rows.Err()
}

func scanOrganization(row pgx.Row) (*domain.Organization, error) {
	var org domain.Organization
	if err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Address,
		&org.AdminID,
		&org.Status,
		&org.CarbonCredits.Total,
		&org.CarbonCredits.Available,
		&org.CarbonCredits.Traded,
		&org.BankApproverID,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &org, nil
}
