// Package approval decides who may move organizations, transfers and trips
// between states.
package approval

import (
	"context"
	"errors"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// Action is a guarded operation.
type Action string

const (
	DecideOrganization       Action = "organization.decide"
	ListPendingOrganizations Action = "organization.list_pending"
	ManageEmployees          Action = "organization.manage_employees"
	ViewLedger               Action = "organization.view_ledger"

	InitiateTransfer Action = "transfer.initiate"
	DecideTransfer   Action = "transfer.decide"
	CancelTransfer   Action = "transfer.cancel"
	UpdatePayment    Action = "transfer.update_payment"
	ViewTransfer     Action = "transfer.view"

	RecordTrip            Action = "trip.record"
	VerifyTrip            Action = "trip.verify"
	EditTrip              Action = "trip.edit"
	ViewTrip              Action = "trip.view"
	ListOrganizationTrips Action = "trip.list_organization"
)

// Resource is the target of an action. Only the field relevant to the
// action needs to be set.
type Resource struct {
	OrganizationID string
	Transaction    *domain.CreditTransaction
	Trip           *domain.Trip
}

// OrganizationLookup resolves organization ownership.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
}

// Gate is the single authorization point for state transitions.
type Gate struct {
	orgs OrganizationLookup
}

// NewGate builds a Gate.
func NewGate(orgs OrganizationLookup) *Gate {
	return &Gate{orgs: orgs}
}

// Authorize returns nil when actor may perform action on res and
// UNAUTHORIZED when there is no actor. Ownership failures against an
// organization report NOT_FOUND for it; every other denial is FORBIDDEN.
func (g *Gate) Authorize(ctx context.Context, actor *domain.User, action Action, res Resource) error {
	if actor == nil || actor.ID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}

	switch action {
	case DecideOrganization, ListPendingOrganizations:
		return requireRole(actor, domain.RoleBankAdmin)

	case ViewLedger:
		if actor.Role == domain.RoleBankAdmin {
			return nil
		}
		return g.requireAdmin(ctx, actor, res.OrganizationID)

	case ManageEmployees, ListOrganizationTrips:
		return g.requireAdmin(ctx, actor, res.OrganizationID)

	case InitiateTransfer:
		if err := requireRole(actor, domain.RoleEmployer); err != nil {
			return err
		}
		return g.requireAdmin(ctx, actor, res.OrganizationID)

	case DecideTransfer:
		if res.Transaction == nil {
			return errMissingResource(action)
		}
		return g.requireAdmin(ctx, actor, res.Transaction.ToOrganizationID)

	case CancelTransfer:
		if res.Transaction == nil {
			return errMissingResource(action)
		}
		return g.requireAdmin(ctx, actor, res.Transaction.FromOrganizationID)

	case UpdatePayment, ViewTransfer:
		if res.Transaction == nil {
			return errMissingResource(action)
		}
		if action == ViewTransfer && actor.Role == domain.RoleBankAdmin {
			return nil
		}
		if g.administers(ctx, actor, res.Transaction.FromOrganizationID) || g.administers(ctx, actor, res.Transaction.ToOrganizationID) {
			return nil
		}
		return apperrors.NewForbidden("only the administrators of either organization may do this")

	case RecordTrip:
		if actor.Role != domain.RoleEmployee {
			return apperrors.NewForbidden("only employees record trips")
		}
		if actor.OrganizationID == nil || actor.Status != domain.ApprovalApproved {
			return apperrors.NewForbidden("employee is not an approved member of an organization")
		}
		return nil

	case VerifyTrip:
		if res.Trip == nil {
			return errMissingResource(action)
		}
		return g.requireAdmin(ctx, actor, res.Trip.OrganizationID)

	case EditTrip:
		if res.Trip == nil {
			return errMissingResource(action)
		}
		if res.Trip.UserID != actor.ID {
			return apperrors.NewForbidden("only the trip owner may change it")
		}
		return nil

	case ViewTrip:
		if res.Trip == nil {
			return errMissingResource(action)
		}
		if res.Trip.UserID == actor.ID || g.administers(ctx, actor, res.Trip.OrganizationID) {
			return nil
		}
		return apperrors.NewForbidden("trip belongs to another user")
	}

	return apperrors.NewForbidden("action not permitted")
}

func requireRole(actor *domain.User, role domain.Role) error {
	if actor.Role != role {
		return apperrors.NewForbidden("requires role " + string(role))
	}
	return nil
}

func (g *Gate) requireAdmin(ctx context.Context, actor *domain.User, orgID string) error {
	if orgID == "" {
		return apperrors.NewForbidden("organization administrator required")
	}
	org, err := g.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("organization", map[string]any{"id": orgID})
		}
		return err
	}
	// a caller who does not administer the organization cannot tell it
	// apart from a missing one
	if !org.AdministeredBy(actor.ID) {
		return apperrors.NewNotFound("organization", map[string]any{"id": orgID})
	}
	return nil
}

func (g *Gate) administers(ctx context.Context, actor *domain.User, orgID string) bool {
	if orgID == "" {
		return false
	}
	org, err := g.orgs.GetByID(ctx, orgID)
	return err == nil && org.AdministeredBy(actor.ID)
}

func errMissingResource(action Action) error {
	return apperrors.NewInternalError(errors.New("approval: no resource given for " + string(action)))
}
