package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/approval"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/ledger"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// PriceScale is the number of decimal places a price per credit may carry.
const PriceScale = 4

// TransferService drives credit transfers through their state machine.
type TransferService struct {
	transactions repository.CreditTransactionRepository
	history      repository.TransactionHistoryRepository
	orgs         repository.OrganizationRepository
	tx           repository.Transactor
	ledger       *ledger.Ledger
	gate         *approval.Gate
	metrics      *observability.Metrics
	logger       *zap.Logger
	publisher
}

// TransferDependencies bundles collaborators for the transfer service.
type TransferDependencies struct {
	TransactionRepo  repository.CreditTransactionRepository
	HistoryRepo      repository.TransactionHistoryRepository
	OrganizationRepo repository.OrganizationRepository
	Transactor       repository.Transactor
	Ledger           *ledger.Ledger
	Gate             *approval.Gate
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
}

// InitiateTransferInput describes a transfer proposal.
type InitiateTransferInput struct {
	// FromOrganizationID defaults to the actor's organization.
	FromOrganizationID string
	ToOrganizationID   string
	Credits            int64
	PricePerCredit     decimal.Decimal
	PaymentMethod      domain.PaymentMethod
	Notes              string
}

// PaymentUpdateInput carries informational payment changes.
type PaymentUpdateInput struct {
	Status        *domain.PaymentStatus
	TransactionID *string
}

// TransferListFilter narrows transfer listings.
type TransferListFilter struct {
	Statuses []domain.TransactionStatus
	Page     repository.Page
}

// NewTransferService constructs the service.
func NewTransferService(deps TransferDependencies) *TransferService {
	return &TransferService{
		transactions: deps.TransactionRepo,
		history:      deps.HistoryRepo,
		orgs:         deps.OrganizationRepo,
		tx:           deps.Transactor,
		ledger:       deps.Ledger,
		gate:         deps.Gate,
		metrics:      deps.Metrics,
		logger:       deps.Logger.Named("transfer"),
		publisher:    publisher{dispatcher: deps.Dispatcher},
	}
}

// InitiateTransfer debits the sender and records a PENDING transfer. The
// debit and the record commit together or not at all.
func (s *TransferService) InitiateTransfer(ctx context.Context, actor *domain.User, in InitiateTransferInput) (*domain.CreditTransaction, error) {
	if err := validateInitiate(&in, actor); err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, approval.InitiateTransfer, approval.Resource{OrganizationID: in.FromOrganizationID}); err != nil {
		return nil, err
	}

	ctx, release, err := s.ledger.Lock(ctx, in.FromOrganizationID, in.ToOrganizationID)
	if err != nil {
		return nil, err
	}
	defer release()

	var transfer *domain.CreditTransaction
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.requireTransacting(ctx, in.FromOrganizationID, "sender"); err != nil {
			return err
		}
		if err := s.requireTransacting(ctx, in.ToOrganizationID, "recipient"); err != nil {
			return err
		}

		transfer = domain.NewCreditTransaction(in.FromOrganizationID, in.ToOrganizationID, in.Credits, in.PricePerCredit, in.PaymentMethod, actor.ID)
		transfer.Notes = in.Notes
		if err := s.transactions.Create(ctx, transfer); err != nil {
			return err
		}

		if _, err := s.ledger.DebitForTransfer(ctx, ledger.Mutation{
			OrganizationID: in.FromOrganizationID,
			Amount:         transfer.CreditAmount(),
			SourceType:     domain.SourceTransfer,
			SourceID:       transfer.ID,
		}); err != nil {
			return err
		}

		return s.recordStatusChange(ctx, actor.ID, transfer.ID, "", domain.TransactionPending, in.Notes)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, actor, transfer, "", events.EventTransferInitiated, in.Notes)
	return transfer, nil
}

// DecideTransfer approves or rejects a PENDING transfer as the receiving
// organization's administrator.
func (s *TransferService) DecideTransfer(ctx context.Context, actor *domain.User, transactionID string, approve bool, comment string) (*domain.CreditTransaction, error) {
	if approve {
		return s.Approve(ctx, actor, transactionID, comment)
	}
	return s.Reject(ctx, actor, transactionID, comment)
}

// Approve completes the transfer and credits the receiver. The sender's
// debit stays realized as traded.
func (s *TransferService) Approve(ctx context.Context, actor *domain.User, transactionID, comment string) (*domain.CreditTransaction, error) {
	return s.transition(ctx, actor, transactionID, approval.DecideTransfer, domain.TransactionCompleted, events.EventTransferCompleted, comment,
		func(ctx context.Context, t *domain.CreditTransaction) error {
			t.ApprovedBy = ptr(actor.ID)
			_, err := s.ledger.Credit(ctx, ledger.Mutation{
				OrganizationID: t.ToOrganizationID,
				Amount:         t.CreditAmount(),
				SourceType:     domain.SourceTransfer,
				SourceID:       t.ID,
			})
			return err
		})
}

// Reject refuses the transfer and restores the sender's available credits.
func (s *TransferService) Reject(ctx context.Context, actor *domain.User, transactionID, reason string) (*domain.CreditTransaction, error) {
	return s.transition(ctx, actor, transactionID, approval.DecideTransfer, domain.TransactionRejected, events.EventTransferRejected, reason, s.reverseSender)
}

// CancelTransfer withdraws a PENDING transfer as the sending organization's
// administrator and restores its available credits.
func (s *TransferService) CancelTransfer(ctx context.Context, actor *domain.User, transactionID, reason string) (*domain.CreditTransaction, error) {
	return s.transition(ctx, actor, transactionID, approval.CancelTransfer, domain.TransactionCancelled, events.EventTransferCancelled, reason, s.reverseSender)
}

func (s *TransferService) reverseSender(ctx context.Context, t *domain.CreditTransaction) error {
	_, err := s.ledger.ReverseDebit(ctx, ledger.Mutation{
		OrganizationID: t.FromOrganizationID,
		Amount:         t.CreditAmount(),
		SourceType:     domain.SourceTransfer,
		SourceID:       t.ID,
	})
	return err
}

// transition moves a PENDING transfer to target and applies its ledger
// effect in one unit of work. Terminal transfers fail with
// INVALID_TRANSITION and are left untouched.
func (s *TransferService) transition(ctx context.Context, actor *domain.User, transactionID string, action approval.Action, target domain.TransactionStatus, eventType events.EventType, comment string, effect func(context.Context, *domain.CreditTransaction) error) (*domain.CreditTransaction, error) {
	current, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	if err := s.gate.Authorize(ctx, actor, action, approval.Resource{Transaction: current}); err != nil {
		return nil, err
	}
	if err := requirePending(current, target); err != nil {
		return nil, err
	}

	ctx, release, err := s.ledger.Lock(ctx, current.FromOrganizationID, current.ToOrganizationID)
	if err != nil {
		return nil, err
	}
	defer release()

	var transfer *domain.CreditTransaction
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.transactions.GetForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, "transaction", transactionID)
		}
		// another caller may have settled it while we waited for the locks
		if err := requirePending(t, target); err != nil {
			return err
		}

		t.Status = target
		if err := effect(ctx, t); err != nil {
			return err
		}
		if err := s.transactions.Update(ctx, t); err != nil {
			return err
		}
		transfer = t
		return s.recordStatusChange(ctx, actor.ID, t.ID, domain.TransactionPending, target, comment)
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, actor, transfer, domain.TransactionPending, eventType, comment)
	return transfer, nil
}

// UpdatePaymentDetails records payment progress reported by either party.
// Payment state never drives the transfer's own status or the ledger.
func (s *TransferService) UpdatePaymentDetails(ctx context.Context, actor *domain.User, transactionID string, in PaymentUpdateInput) (*domain.CreditTransaction, error) {
	if in.Status == nil && in.TransactionID == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown payment status", map[string]any{"status": string(*in.Status)})
	}

	current, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	if err := s.gate.Authorize(ctx, actor, approval.UpdatePayment, approval.Resource{Transaction: current}); err != nil {
		return nil, err
	}

	// serialize with state transitions on the same pair
	ctx, release, err := s.ledger.Lock(ctx, current.FromOrganizationID, current.ToOrganizationID)
	if err != nil {
		return nil, err
	}
	defer release()

	var transfer *domain.CreditTransaction
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.transactions.GetForUpdate(ctx, transactionID)
		if err != nil {
			return notFound(err, "transaction", transactionID)
		}
		old := map[string]any{
			"status":         t.PaymentDetails.Status,
			"transaction_id": t.PaymentDetails.TransactionID,
		}
		if in.Status != nil {
			t.PaymentDetails.Status = *in.Status
		}
		if in.TransactionID != nil {
			t.PaymentDetails.TransactionID = strings.TrimSpace(*in.TransactionID)
		}
		if err := s.transactions.Update(ctx, t); err != nil {
			return err
		}
		transfer = t
		return s.history.Create(ctx, &domain.TransactionHistory{
			TransactionID: t.ID,
			ChangedByID:   ptr(actor.ID),
			ChangeType:    domain.ChangeTypePayment,
			OldValue:      old,
			NewValue: map[string]any{
				"status":         t.PaymentDetails.Status,
				"transaction_id": t.PaymentDetails.TransactionID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if transfer.PaymentDetails.Status == domain.PaymentFailed && transfer.Status == domain.TransactionCompleted {
		s.logger.Warn("payment failed on completed transfer",
			zap.String("transaction_id", transfer.ID),
			zap.String("payment_transaction_id", transfer.PaymentDetails.TransactionID),
		)
	}
	return transfer, nil
}

// GetTransfer returns a transfer visible to the actor.
func (s *TransferService) GetTransfer(ctx context.Context, actor *domain.User, transactionID string) (*domain.CreditTransaction, error) {
	t, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	if err := s.gate.Authorize(ctx, actor, approval.ViewTransfer, approval.Resource{Transaction: t}); err != nil {
		return nil, err
	}
	return t, nil
}

// ListOrganizationTransfers lists transfers on either side of the actor's
// organization, newest first. Bank administrators see every transfer.
func (s *TransferService) ListOrganizationTransfers(ctx context.Context, actor *domain.User, filter TransferListFilter) ([]domain.CreditTransaction, error) {
	repoFilter := repository.TransactionFilter{Statuses: filter.Statuses, Page: filter.Page}
	if actor.Role != domain.RoleBankAdmin {
		if actor.OrganizationID == nil {
			return nil, apperrors.NewValidationError("user has no organization", nil)
		}
		repoFilter.OrganizationID = actor.OrganizationID
	}
	return s.transactions.List(ctx, repoFilter)
}

// ListPendingIncoming lists transfers awaiting the actor's decision.
func (s *TransferService) ListPendingIncoming(ctx context.Context, actor *domain.User, page repository.Page) ([]domain.CreditTransaction, error) {
	if actor.OrganizationID == nil {
		return nil, apperrors.NewValidationError("user has no organization", nil)
	}
	if err := s.gate.Authorize(ctx, actor, approval.ManageEmployees, approval.Resource{OrganizationID: *actor.OrganizationID}); err != nil {
		return nil, err
	}
	return s.transactions.List(ctx, repository.TransactionFilter{
		ToOrganizationID: actor.OrganizationID,
		Statuses:         []domain.TransactionStatus{domain.TransactionPending},
		Page:             page,
	})
}

// ListTransferHistory returns the audit trail of a transfer.
func (s *TransferService) ListTransferHistory(ctx context.Context, actor *domain.User, transactionID string) ([]domain.TransactionHistory, error) {
	if _, err := s.GetTransfer(ctx, actor, transactionID); err != nil {
		return nil, err
	}
	return s.history.ListByTransaction(ctx, transactionID)
}

// GetMarketStats aggregates COMPLETED transfers straight from storage.
func (s *TransferService) GetMarketStats(ctx context.Context) (domain.MarketStats, error) {
	return s.transactions.MarketStats(ctx)
}

func (s *TransferService) requireTransacting(ctx context.Context, orgID, side string) error {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return notFound(err, "organization", orgID)
	}
	if !org.CanTransact() {
		return apperrors.NewValidationError(side+" organization is not approved", map[string]any{
			"organization_id": orgID,
			"status":          org.Status,
		})
	}
	return nil
}

func (s *TransferService) recordStatusChange(ctx context.Context, actorID, transactionID string, oldStatus, newStatus domain.TransactionStatus, comment string) error {
	entry := &domain.TransactionHistory{
		TransactionID: transactionID,
		ChangedByID:   ptr(actorID),
		ChangeType:    domain.ChangeTypeStatus,
		NewValue: map[string]any{
			"status": newStatus,
		},
	}
	if oldStatus != "" {
		entry.OldValue = map[string]any{"status": oldStatus}
	}
	if comment != "" {
		entry.NewValue["comment"] = comment
	}
	return s.history.Create(ctx, entry)
}

func (s *TransferService) afterTransition(ctx context.Context, actor *domain.User, t *domain.CreditTransaction, oldStatus domain.TransactionStatus, eventType events.EventType, comment string) {
	s.metrics.RecordTransition(string(t.Status))
	s.logger.Info("transfer transitioned",
		zap.String("transaction_id", t.ID),
		zap.String("status", string(t.Status)),
		zap.String("actor_id", actor.ID),
		zap.Int64("credits", t.Credits),
	)
	s.publish(ctx, events.Event{
		Type:      eventType,
		SubjectID: t.ID,
		ActorID:   actor.ID,
		Payload: events.TransferPayload{
			FromOrganizationID: t.FromOrganizationID,
			ToOrganizationID:   t.ToOrganizationID,
			Credits:            t.Credits,
			TotalAmount:        t.TotalAmount().String(),
			OldStatus:          oldStatus,
			NewStatus:          t.Status,
			Comment:            comment,
		},
	})
}

func validateInitiate(in *InitiateTransferInput, actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	in.FromOrganizationID = strings.TrimSpace(in.FromOrganizationID)
	in.ToOrganizationID = strings.TrimSpace(in.ToOrganizationID)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.FromOrganizationID == "" && actor.OrganizationID != nil {
		in.FromOrganizationID = *actor.OrganizationID
	}
	switch {
	case in.FromOrganizationID == "":
		return apperrors.NewValidationError("sender organization is required", nil)
	case in.ToOrganizationID == "":
		return apperrors.NewValidationError("recipient organization is required", nil)
	case in.FromOrganizationID == in.ToOrganizationID:
		return apperrors.NewValidationError("sender and recipient must differ", map[string]any{"organization_id": in.ToOrganizationID})
	case in.Credits <= 0:
		return apperrors.NewValidationError("credits must be a positive integer", map[string]any{"credits": in.Credits})
	case in.PricePerCredit.IsNegative():
		return apperrors.NewValidationError("price per credit must not be negative", map[string]any{"price_per_credit": in.PricePerCredit.String()})
	case !in.PricePerCredit.Equal(in.PricePerCredit.Truncate(PriceScale)):
		return apperrors.NewValidationError("price per credit has too many decimal places", map[string]any{"price_per_credit": in.PricePerCredit.String(), "max_scale": PriceScale})
	case !in.PaymentMethod.Valid():
		return apperrors.NewValidationError("unknown payment method", map[string]any{"method": string(in.PaymentMethod)})
	}
	return nil
}

func requirePending(t *domain.CreditTransaction, target domain.TransactionStatus) error {
	if t.Status != domain.TransactionPending {
		return apperrors.NewInvalidTransition("transaction is no longer pending", map[string]any{
			"transaction_id": t.ID,
			"status":         t.Status,
			"requested":      target,
		})
	}
	return nil
}
