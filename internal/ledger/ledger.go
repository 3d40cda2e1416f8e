// Package ledger applies balance primitives to organizations under
// per-organization locks and records every applied mutation.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// Mutation names the organization, the amount and what caused it.
type Mutation struct {
	OrganizationID string
	Amount         decimal.Decimal
	SourceType     domain.LedgerSourceType
	SourceID       string
}

// Ledger is the only writer of organization balances.
type Ledger struct {
	orgs    repository.OrganizationRepository
	entries repository.LedgerEntryRepository
	tx      repository.Transactor
	locker  Locker
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New builds a Ledger.
func New(orgs repository.OrganizationRepository, entries repository.LedgerEntryRepository, tx repository.Transactor, locker Locker, metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	return &Ledger{
		orgs:    orgs,
		entries: entries,
		tx:      tx,
		locker:  locker,
		metrics: metrics,
		logger:  logger.Named("ledger"),
	}
}

// Lock acquires the organizations not yet held under ctx and returns a
// context marking them held. Callers that touch several balances lock them
// here in one call before opening their storage transaction.
func (l *Ledger) Lock(ctx context.Context, orgIDs ...string) (context.Context, Release, error) {
	want := missing(ctx, normalizeKeys(orgIDs))
	if len(want) == 0 {
		return ctx, noopRelease, nil
	}
	release, err := l.locker.Acquire(ctx, want...)
	if err != nil {
		if errors.Is(err, apperrors.ErrContention) {
			l.metrics.RecordLockContention(l.locker.Backend())
			l.logger.Warn("ledger lock contention", zap.Strings("org_ids", want), zap.Error(err))
		}
		return ctx, nil, err
	}
	return WithHeld(ctx, want...), release, nil
}

// Credit realizes amount: total and available grow.
func (l *Ledger) Credit(ctx context.Context, m Mutation) (domain.CarbonCredits, error) {
	return l.apply(ctx, domain.LedgerCredit, m, (*domain.CarbonCredits).Credit)
}

// DebitForTransfer moves amount from available to traded, failing with
// INSUFFICIENT_BALANCE when available cannot cover it.
func (l *Ledger) DebitForTransfer(ctx context.Context, m Mutation) (domain.CarbonCredits, error) {
	return l.apply(ctx, domain.LedgerDebitForTransfer, m, (*domain.CarbonCredits).DebitForTransfer)
}

// ReverseDebit undoes a DebitForTransfer.
func (l *Ledger) ReverseDebit(ctx context.Context, m Mutation) (domain.CarbonCredits, error) {
	return l.apply(ctx, domain.LedgerReverseDebit, m, (*domain.CarbonCredits).ReverseDebit)
}

// Entries lists the mutations recorded for an organization, newest first.
func (l *Ledger) Entries(ctx context.Context, orgID string, page repository.Page) ([]domain.LedgerEntry, error) {
	return l.entries.ListByOrganization(ctx, orgID, page)
}

func (l *Ledger) apply(ctx context.Context, op domain.LedgerOperation, m Mutation, primitive func(*domain.CarbonCredits, decimal.Decimal) error) (domain.CarbonCredits, error) {
	ctx, release, err := l.Lock(ctx, m.OrganizationID)
	if err != nil {
		return domain.CarbonCredits{}, err
	}
	defer release()

	var balance domain.CarbonCredits
	err = l.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		org, err := l.orgs.GetForUpdate(ctx, m.OrganizationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("organization", map[string]any{"id": m.OrganizationID})
			}
			return err
		}

		balance = org.CarbonCredits
		if err := primitive(&balance, m.Amount); err != nil {
			return err
		}
		if err := balance.Check(); err != nil {
			return apperrors.NewInternalError(err)
		}

		if err := l.orgs.UpdateBalance(ctx, org.ID, balance); err != nil {
			return err
		}
		return l.entries.Append(ctx, &domain.LedgerEntry{
			OrganizationID: org.ID,
			Operation:      op,
			Amount:         m.Amount,
			SourceType:     m.SourceType,
			SourceID:       m.SourceID,
			BalanceAfter:   balance,
		})
	})
	if err != nil {
		return domain.CarbonCredits{}, err
	}

	l.metrics.RecordLedgerMutation(string(op))
	l.logger.Info("balance mutated",
		zap.String("org_id", m.OrganizationID),
		zap.String("op", string(op)),
		zap.String("amount", m.Amount.String()),
		zap.String("source", string(m.SourceType)),
		zap.String("source_id", m.SourceID),
		zap.String("available", balance.Available.String()),
	)
	return balance, nil
}
