package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/approval"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/ledger"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// OrganizationService manages organization onboarding and membership.
type OrganizationService struct {
	orgs   repository.OrganizationRepository
	users  repository.UserRepository
	tx     repository.Transactor
	ledger *ledger.Ledger
	gate   *approval.Gate
	logger *zap.Logger
	publisher
}

// OrganizationDependencies bundles collaborators for the organization service.
type OrganizationDependencies struct {
	OrganizationRepo repository.OrganizationRepository
	UserRepo         repository.UserRepository
	Transactor       repository.Transactor
	Ledger           *ledger.Ledger
	Gate             *approval.Gate
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewOrganizationService constructs the service.
func NewOrganizationService(deps OrganizationDependencies) *OrganizationService {
	return &OrganizationService{
		orgs:      deps.OrganizationRepo,
		users:     deps.UserRepo,
		tx:        deps.Transactor,
		ledger:    deps.Ledger,
		gate:      deps.Gate,
		logger:    deps.Logger.Named("organization"),
		publisher: publisher{dispatcher: deps.Dispatcher},
	}
}

// Decide approves or rejects a PENDING organization. Approval also approves
// its administrator's account.
func (s *OrganizationService) Decide(ctx context.Context, actor *domain.User, orgID string, approve bool) (*domain.Organization, error) {
	if err := s.gate.Authorize(ctx, actor, approval.DecideOrganization, approval.Resource{OrganizationID: orgID}); err != nil {
		return nil, err
	}

	ctx, release, err := s.ledger.Lock(ctx, orgID)
	if err != nil {
		return nil, err
	}
	defer release()

	var org *domain.Organization
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orgs.GetForUpdate(ctx, orgID)
		if err != nil {
			return notFound(err, "organization", orgID)
		}
		if o.Status != domain.ApprovalPending {
			return apperrors.NewInvalidTransition("organization was already decided", map[string]any{
				"organization_id": o.ID,
				"status":          o.Status,
			})
		}

		o.Status = domain.ApprovalRejected
		if approve {
			o.Status = domain.ApprovalApproved
		}
		o.BankApproverID = ptr(actor.ID)
		if err := s.orgs.Update(ctx, o); err != nil {
			return err
		}
		org = o

		if !approve {
			return nil
		}
		admin, err := s.users.GetByID(ctx, o.AdminID)
		if err != nil {
			return notFound(err, "user", o.AdminID)
		}
		admin.Status = domain.ApprovalApproved
		return s.users.Update(ctx, admin)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization decided",
		zap.String("organization_id", org.ID),
		zap.String("status", string(org.Status)),
		zap.String("actor_id", actor.ID),
	)
	s.publish(ctx, events.Event{
		Type:      events.EventOrganizationDecided,
		SubjectID: org.ID,
		ActorID:   actor.ID,
		Payload:   events.OrganizationPayload{Name: org.Name, Status: org.Status},
	})
	return org, nil
}

// AddEmployee affiliates an unaffiliated EMPLOYEE, identified by email, with
// the organization and approves the account.
func (s *OrganizationService) AddEmployee(ctx context.Context, actor *domain.User, orgID, email string) (*domain.User, error) {
	if err := s.gate.Authorize(ctx, actor, approval.ManageEmployees, approval.Resource{OrganizationID: orgID}); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperrors.NewValidationError("employee email is required", nil)
	}

	var employee *domain.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByEmail(ctx, email)
		if err != nil {
			return notFound(err, "user", email)
		}
		if user.Role != domain.RoleEmployee {
			return apperrors.NewValidationError("user is not an employee", map[string]any{"role": user.Role})
		}
		if user.OrganizationID != nil {
			return apperrors.NewValidationError("employee already belongs to an organization", map[string]any{"organization_id": *user.OrganizationID})
		}
		user.OrganizationID = ptr(orgID)
		user.Status = domain.ApprovalApproved
		employee = user
		return s.users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventOrganizationEmployee,
		SubjectID: orgID,
		ActorID:   actor.ID,
		Payload:   events.OrganizationPayload{Status: employee.Status, EmployeeID: employee.ID},
	})
	return employee, nil
}

// Get returns an organization by id.
func (s *OrganizationService) Get(ctx context.Context, orgID string) (*domain.Organization, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, notFound(err, "organization", orgID)
	}
	return org, nil
}

// GetCredits returns the organization's current balance.
func (s *OrganizationService) GetCredits(ctx context.Context, orgID string) (domain.CarbonCredits, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return domain.CarbonCredits{}, err
	}
	return org.CarbonCredits, nil
}

// ListPending lists organizations awaiting a bank decision.
func (s *OrganizationService) ListPending(ctx context.Context, actor *domain.User, page repository.Page) ([]domain.Organization, error) {
	if err := s.gate.Authorize(ctx, actor, approval.ListPendingOrganizations, approval.Resource{}); err != nil {
		return nil, err
	}
	return s.orgs.ListByStatus(ctx, domain.ApprovalPending, page)
}

// ListEmployees lists the organization's members.
func (s *OrganizationService) ListEmployees(ctx context.Context, actor *domain.User, orgID string) ([]domain.User, error) {
	if err := s.gate.Authorize(ctx, actor, approval.ManageEmployees, approval.Resource{OrganizationID: orgID}); err != nil {
		return nil, err
	}
	return s.users.ListByOrganization(ctx, orgID)
}

// LedgerEntries returns the organization's balance mutations, newest first.
func (s *OrganizationService) LedgerEntries(ctx context.Context, actor *domain.User, orgID string, page repository.Page) ([]domain.LedgerEntry, error) {
	if err := s.gate.Authorize(ctx, actor, approval.ViewLedger, approval.Resource{OrganizationID: orgID}); err != nil {
		return nil, err
	}
	return s.ledger.Entries(ctx, orgID, page)
}
