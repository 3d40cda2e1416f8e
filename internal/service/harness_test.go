package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/approval"
	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/ledger"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/repository/memory"
)

type harness struct {
	store     *memory.Store
	metrics   *observability.Metrics
	transfers *TransferService
	trips     *TripService
	orgs      *OrganizationService
	auth      *AuthService

	mu        sync.Mutex
	published []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	gate := approval.NewGate(store.Organizations())
	l := ledger.New(store.Organizations(), store.LedgerEntries(), store, ledger.NewLocalLocker(5*time.Second), metrics, logger)

	h := &harness{store: store, metrics: metrics}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.published = append(h.published, e)
			return nil
		})
	}

	h.transfers = NewTransferService(TransferDependencies{
		TransactionRepo:  store.CreditTransactions(),
		HistoryRepo:      store.TransactionHistory(),
		OrganizationRepo: store.Organizations(),
		Transactor:       store,
		Ledger:           l,
		Gate:             gate,
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
	})
	h.trips = NewTripService(TripDependencies{
		TripRepo:   store.Trips(),
		UserRepo:   store.Users(),
		Transactor: store,
		Ledger:     l,
		Gate:       gate,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	h.orgs = NewOrganizationService(OrganizationDependencies{
		OrganizationRepo: store.Organizations(),
		UserRepo:         store.Users(),
		Transactor:       store,
		Ledger:           l,
		Gate:             gate,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}}
	h.auth = NewAuthService(cfg, AuthDependencies{
		UserRepo:         store.Users(),
		OrganizationRepo: store.Organizations(),
		Transactor:       store,
		Logger:           logger,
	})
	return h
}

func (h *harness) eventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]events.EventType, 0, len(h.published))
	for _, e := range h.published {
		types = append(types, e.Type)
	}
	return types
}

// employer seeds an employer administering an organization in the given
// status with available credits.
func (h *harness) employer(t *testing.T, name string, status domain.ApprovalStatus, available int64) (*domain.User, *domain.Organization) {
	t.Helper()
	ctx := context.Background()

	admin := &domain.User{Email: name + "@example.com", Role: domain.RoleEmployer, Status: domain.ApprovalApproved}
	require.NoError(t, h.store.Users().Create(ctx, admin))

	org := &domain.Organization{Name: name, AdminID: admin.ID, Status: status}
	require.NoError(t, h.store.Organizations().Create(ctx, org))
	if available > 0 {
		amount := decimal.NewFromInt(available)
		require.NoError(t, h.store.Organizations().UpdateBalance(ctx, org.ID, domain.CarbonCredits{Total: amount, Available: amount}))
	}

	admin.OrganizationID = &org.ID
	require.NoError(t, h.store.Users().Update(ctx, admin))
	return admin, h.org(t, org.ID)
}

func (h *harness) employee(t *testing.T, email string, orgID *string) *domain.User {
	t.Helper()
	status := domain.ApprovalPending
	if orgID != nil {
		status = domain.ApprovalApproved
	}
	user := &domain.User{Email: email, Role: domain.RoleEmployee, Status: status, OrganizationID: orgID}
	require.NoError(t, h.store.Users().Create(context.Background(), user))
	return user
}

func (h *harness) bankAdmin(t *testing.T) *domain.User {
	t.Helper()
	user := &domain.User{Email: "bank@example.com", Role: domain.RoleBankAdmin, Status: domain.ApprovalApproved}
	require.NoError(t, h.store.Users().Create(context.Background(), user))
	return user
}

func (h *harness) org(t *testing.T, id string) *domain.Organization {
	t.Helper()
	org, err := h.store.Organizations().GetByID(context.Background(), id)
	require.NoError(t, err)
	return org
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
