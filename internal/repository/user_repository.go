package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ListByOrganization(ctx context.Context, orgID string) ([]domain.User, error)
	// AddCarbonCredits increments the user's personal counter in place.
	AddCarbonCredits(ctx context.Context, userID string, amount decimal.Decimal) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, password_hash, role, status, profile, organization_id,
               monthly_driving_quota, carbon_credits, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, role, status, profile, organization_id, monthly_driving_quota, carbon_credits)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`

	err := querier(ctx, r.pool).QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.Profile,
		user.OrganizationID,
		user.MonthlyDrivingQuota,
		user.CarbonCredits,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return TranslatePgError("user", err)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET email=$1, password_hash=$2, role=$3, status=$4, profile=$5, organization_id=$6,
            monthly_driving_quota=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`

	err := querier(ctx, r.pool).QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.Profile,
		user.OrganizationID,
		user.MonthlyDrivingQuota,
		user.ID,
	).Scan(&user.UpdatedAt)
	return TranslatePgError("user", err)
}

func (r *userRepository) AddCarbonCredits(ctx context.Context, userID string, amount decimal.Decimal) error {
	const query = `UPDATE users SET carbon_credits = carbon_credits + $1, updated_at=NOW() WHERE id=$2`
	tag, err := querier(ctx, r.pool).Exec(ctx, query, amount, userID)
	if err != nil {
		return TranslatePgError("user", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(querier(ctx, r.pool).QueryRow(ctx, query, email))
}

func (r *userRepository) ListByOrganization(ctx context.Context, orgID string) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE organization_id=$1 ORDER BY created_at ASC`
	rows, err := querier(ctx, r.pool).Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.Profile,
		&user.OrganizationID,
		&user.MonthlyDrivingQuota,
		&user.CarbonCredits,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
