package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/persistence"
	"github.com/spec-kit/carbon-ledger/internal/repository"
)

func newTestPostgres(t *testing.T) *persistence.Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	cfg := config.PostgresConfig{DSN: dsn, MaxConns: 4}
	require.NoError(t, persistence.RunMigrations(cfg, zap.NewNop()))

	pg, err := persistence.NewPostgres(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	return pg
}

func seedPostgresOrg(t *testing.T, ctx context.Context, users repository.UserRepository, orgs repository.OrganizationRepository) *domain.Organization {
	t.Helper()
	admin := &domain.User{
		Email:               "admin-" + uuid.NewString() + "@example.com",
		PasswordHash:        "x",
		Role:                domain.RoleEmployer,
		Status:              domain.ApprovalApproved,
		MonthlyDrivingQuota: domain.DefaultMonthlyDrivingQuota,
	}
	require.NoError(t, users.Create(ctx, admin))

	org := &domain.Organization{Name: "Org " + admin.ID, AdminID: admin.ID, Status: domain.ApprovalApproved}
	require.NoError(t, orgs.Create(ctx, org))
	return org
}

func TestPostgresBalanceRollsBackWithTransaction(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pg.Pool)
	orgs := repository.NewOrganizationRepository(pg.Pool)
	txm := persistence.NewTxManager(pg.Pool, time.Second, zap.NewNop())

	org := seedPostgresOrg(t, ctx, users, orgs)
	hundred := decimal.NewFromInt(100)
	require.NoError(t, orgs.UpdateBalance(ctx, org.ID, domain.CarbonCredits{Total: hundred, Available: hundred}))

	err := txm.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := orgs.GetForUpdate(ctx, org.ID)
		require.NoError(t, err)
		balance := locked.CarbonCredits
		require.NoError(t, balance.DebitForTransfer(decimal.NewFromInt(40)))
		require.NoError(t, orgs.UpdateBalance(ctx, org.ID, balance))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	reloaded, err := orgs.GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CarbonCredits.Available.Equal(hundred))
	assert.True(t, reloaded.CarbonCredits.Traded.IsZero())
}

func TestPostgresRejectsNegativeAvailable(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pg.Pool)
	orgs := repository.NewOrganizationRepository(pg.Pool)

	org := seedPostgresOrg(t, ctx, users, orgs)
	err := orgs.UpdateBalance(ctx, org.ID, domain.CarbonCredits{Total: decimal.NewFromInt(10), Available: decimal.NewFromInt(-5), Traded: decimal.NewFromInt(15)})
	assert.Error(t, err)
}

func TestPostgresDuplicateEmail(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pg.Pool)

	email := "dup-" + uuid.NewString() + "@example.com"
	first := &domain.User{Email: email, PasswordHash: "x", Role: domain.RoleEmployee, Status: domain.ApprovalPending}
	require.NoError(t, users.Create(ctx, first))

	second := &domain.User{Email: email, PasswordHash: "x", Role: domain.RoleEmployee, Status: domain.ApprovalPending}
	assert.ErrorIs(t, users.Create(ctx, second), repository.ErrDuplicate)
}

func TestPostgresMarketStatsCountsCompletedOnly(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	users := repository.NewUserRepository(pg.Pool)
	orgs := repository.NewOrganizationRepository(pg.Pool)
	txs := repository.NewCreditTransactionRepository(pg.Pool)

	before, err := txs.MarketStats(ctx)
	require.NoError(t, err)

	from := seedPostgresOrg(t, ctx, users, orgs)
	to := seedPostgresOrg(t, ctx, users, orgs)

	completed := domain.NewCreditTransaction(from.ID, to.ID, 10, decimal.NewFromInt(3), domain.PaymentCrypto, from.AdminID)
	require.NoError(t, txs.Create(ctx, completed))
	completed.Status = domain.TransactionCompleted
	require.NoError(t, txs.Update(ctx, completed))

	pending := domain.NewCreditTransaction(from.ID, to.ID, 99, decimal.NewFromInt(1), domain.PaymentCrypto, from.AdminID)
	require.NoError(t, txs.Create(ctx, pending))

	after, err := txs.MarketStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalTransactions+1, after.TotalTransactions)
	assert.Equal(t, before.TotalCreditsTraded+10, after.TotalCreditsTraded)
	assert.True(t, after.TotalValue.Sub(before.TotalValue).Equal(decimal.NewFromInt(30)))

	loaded, err := txs.GetByID(ctx, completed.ID)
	require.NoError(t, err)
	assert.True(t, loaded.TotalAmount().Equal(decimal.NewFromInt(30)))
}
