package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// TripFilter narrows trip listings.
type TripFilter struct {
	UserID         *string
	OrganizationID *string
	Statuses       []domain.TripStatus
	Page           Page
}

// TripRepository persists trips.
type TripRepository interface {
	Create(ctx context.Context, trip *domain.Trip) error
	Update(ctx context.Context, trip *domain.Trip) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Trip, error)
	// GetForUpdate loads the trip and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Trip, error)
	List(ctx context.Context, filter TripFilter) ([]domain.Trip, error)
}

type tripRepository struct {
	pool *pgxpool.Pool
}

// NewTripRepository returns a Postgres-backed implementation.
func NewTripRepository(pool *pgxpool.Pool) TripRepository {
	return &tripRepository{pool: pool}
}

const tripColumns = `id, user_id, organization_id, trip_date, transport_mode, start_location, end_location,
               distance, carbon_credits_earned, status, verification_method, verification_data, created_at, updated_at`

func (r *tripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	const query = `
        INSERT INTO trips (user_id, organization_id, trip_date, transport_mode, start_location, end_location,
            distance, carbon_credits_earned, status, verification_method, verification_data)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		trip.UserID,
		trip.OrganizationID,
		trip.Date,
		trip.TransportMode,
		trip.StartLocation,
		trip.EndLocation,
		trip.Distance,
		trip.CarbonCreditsEarned,
		trip.Status,
		trip.VerificationMethod,
		trip.VerificationData,
	).Scan(&trip.ID, &trip.CreatedAt, &trip.UpdatedAt)
}

func (r *tripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	const query = `
        UPDATE trips SET trip_date=$1, transport_mode=$2, start_location=$3, end_location=$4, distance=$5,
            carbon_credits_earned=$6, status=$7, verification_method=$8, verification_data=$9, updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`
	return querier(ctx, r.pool).QueryRow(ctx, query,
		trip.Date,
		trip.TransportMode,
		trip.StartLocation,
		trip.EndLocation,
		trip.Distance,
		trip.CarbonCreditsEarned,
		trip.Status,
		trip.VerificationMethod,
		trip.VerificationData,
		trip.ID,
	).Scan(&trip.UpdatedAt)
}

func (r *tripRepository) Delete(ctx context.Context, id string) error {
	cmd, err := querier(ctx, r.pool).Exec(ctx, `DELETE FROM trips WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *tripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id=$1`
	return scanTrip(querier(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *tripRepository) GetForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id=$1 FOR UPDATE`
	trip, err := scanTrip(querier(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, TranslatePgError("trip", err)
	}
	return trip, nil
}

func (r *tripRepository) List(ctx context.Context, filter TripFilter) ([]domain.Trip, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("organization_id=$%d", len(args)))
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
	query := fmt.Sprintf(`SELECT %s FROM trips WHERE %s ORDER BY trip_date DESC LIMIT %d OFFSET %d`,
		tripColumns, strings.Join(clauses, " AND "), page.Limit, page.Offset)

	rows, err := querier(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *trip)
	}
	return result, rows.Err()
}

func scanTrip(row pgx.Row) (*domain.Trip, error) {
	var trip domain.Trip
	if err := row.Scan(
		&trip.ID,
		&trip.UserID,
		&trip.OrganizationID,
		&trip.Date,
		&trip.TransportMode,
		&trip.StartLocation,
		&trip.EndLocation,
		&trip.Distance,
		&trip.CarbonCreditsEarned,
		&trip.Status,
		&trip.VerificationMethod,
		&trip.VerificationData,
		&trip.CreatedAt,
		&trip.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &trip, nil
}
