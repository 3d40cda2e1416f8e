package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository/memory"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

type fixture struct {
	gate     *Gate
	bank     *domain.User
	adminX   *domain.User
	adminY   *domain.User
	employee *domain.User
	orgX     string
	orgY     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	f := fixture{
		gate:   NewGate(store.Organizations()),
		bank:   &domain.User{ID: "bank", Role: domain.RoleBankAdmin, Status: domain.ApprovalApproved},
		adminX: &domain.User{ID: "admin-x", Role: domain.RoleEmployer, Status: domain.ApprovalApproved},
		adminY: &domain.User{ID: "admin-y", Role: domain.RoleEmployer, Status: domain.ApprovalApproved},
	}
	orgX := &domain.Organization{Name: "X", AdminID: f.adminX.ID, Status: domain.ApprovalApproved}
	orgY := &domain.Organization{Name: "Y", AdminID: f.adminY.ID, Status: domain.ApprovalApproved}
	require.NoError(t, store.Organizations().Create(ctx, orgX))
	require.NoError(t, store.Organizations().Create(ctx, orgY))
	f.orgX, f.orgY = orgX.ID, orgY.ID
	f.employee = &domain.User{ID: "emp", Role: domain.RoleEmployee, Status: domain.ApprovalApproved, OrganizationID: &f.orgX}
	return f
}

func TestOrganizationDecisionsNeedBankAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.gate.Authorize(ctx, f.bank, DecideOrganization, Resource{OrganizationID: f.orgX}))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminX, DecideOrganization, Resource{OrganizationID: f.orgX}), apperrors.ErrForbidden)
	assert.ErrorIs(t, f.gate.Authorize(ctx, nil, DecideOrganization, Resource{}), apperrors.ErrUnauthorized)
}

func TestTransferDecisionNeedsReceivingAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := &domain.CreditTransaction{FromOrganizationID: f.orgX, ToOrganizationID: f.orgY}
	res := Resource{Transaction: tx}

	assert.NoError(t, f.gate.Authorize(ctx, f.adminY, DecideTransfer, res))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminX, DecideTransfer, res), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.bank, DecideTransfer, res), apperrors.ErrNotFound)

	assert.NoError(t, f.gate.Authorize(ctx, f.adminX, CancelTransfer, res))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminY, CancelTransfer, res), apperrors.ErrNotFound)

	assert.NoError(t, f.gate.Authorize(ctx, f.adminX, UpdatePayment, res))
	assert.NoError(t, f.gate.Authorize(ctx, f.adminY, UpdatePayment, res))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.bank, UpdatePayment, res), apperrors.ErrForbidden)
	assert.NoError(t, f.gate.Authorize(ctx, f.bank, ViewTransfer, res))
}

func TestInitiateTransferNeedsEmployerAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.gate.Authorize(ctx, f.adminX, InitiateTransfer, Resource{OrganizationID: f.orgX}))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminX, InitiateTransfer, Resource{OrganizationID: f.orgY}), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.employee, InitiateTransfer, Resource{OrganizationID: f.orgX}), apperrors.ErrForbidden)
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminX, InitiateTransfer, Resource{OrganizationID: "missing"}), apperrors.ErrNotFound)
}

func TestTripRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip := &domain.Trip{UserID: f.employee.ID, OrganizationID: f.orgX}

	assert.NoError(t, f.gate.Authorize(ctx, f.employee, RecordTrip, Resource{}))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminX, RecordTrip, Resource{}), apperrors.ErrForbidden)

	unaffiliated := &domain.User{ID: "loner", Role: domain.RoleEmployee, Status: domain.ApprovalPending}
	assert.ErrorIs(t, f.gate.Authorize(ctx, unaffiliated, RecordTrip, Resource{}), apperrors.ErrForbidden)

	assert.NoError(t, f.gate.Authorize(ctx, f.adminX, VerifyTrip, Resource{Trip: trip}))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminY, VerifyTrip, Resource{Trip: trip}), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.employee, VerifyTrip, Resource{Trip: trip}), apperrors.ErrNotFound)

	assert.NoError(t, f.gate.Authorize(ctx, f.employee, EditTrip, Resource{Trip: trip}))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminX, EditTrip, Resource{Trip: trip}), apperrors.ErrForbidden)

	assert.NoError(t, f.gate.Authorize(ctx, f.adminX, ViewTrip, Resource{Trip: trip}))
	assert.ErrorIs(t, f.gate.Authorize(ctx, f.adminY, ViewTrip, Resource{Trip: trip}), apperrors.ErrForbidden)
}

func TestSystemAdminHasNoImplicitOverride(t *testing.T) {
	f := newFixture(t)
	sys := &domain.User{ID: "root", Role: domain.RoleSystemAdmin, Status: domain.ApprovalApproved}
	tx := &domain.CreditTransaction{FromOrganizationID: f.orgX, ToOrganizationID: f.orgY}

	assert.ErrorIs(t, f.gate.Authorize(context.Background(), sys, DecideTransfer, Resource{Transaction: tx}), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.gate.Authorize(context.Background(), sys, DecideOrganization, Resource{}), apperrors.ErrForbidden)
}
