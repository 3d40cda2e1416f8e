package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

type transferFixture struct {
	h      *harness
	adminX *domain.User
	adminY *domain.User
	orgX   string
	orgY   string
}

func newTransferFixture(t *testing.T, availableX int64) transferFixture {
	t.Helper()
	h := newHarness(t)
	adminX, orgX := h.employer(t, "x", domain.ApprovalApproved, availableX)
	adminY, orgY := h.employer(t, "y", domain.ApprovalApproved, 0)
	return transferFixture{h: h, adminX: adminX, adminY: adminY, orgX: orgX.ID, orgY: orgY.ID}
}

func (f transferFixture) initiate(t *testing.T, credits int64, price string) *domain.CreditTransaction {
	t.Helper()
	tx, err := f.h.transfers.InitiateTransfer(context.Background(), f.adminX, InitiateTransferInput{
		ToOrganizationID: f.orgY,
		Credits:          credits,
		PricePerCredit:   dec(price),
		PaymentMethod:    domain.PaymentBankTransfer,
	})
	require.NoError(t, err)
	return tx
}

func TestInitiateTransferDebitsSender(t *testing.T) {
	f := newTransferFixture(t, 100)

	tx := f.initiate(t, 40, "2.00")

	assert.Equal(t, domain.TransactionPending, tx.Status)
	assert.True(t, tx.TotalAmount().Equal(dec("80")))
	assert.Equal(t, f.orgX, tx.FromOrganizationID)
	assert.Equal(t, f.adminX.ID, tx.InitiatedBy)

	x := f.h.org(t, f.orgX)
	assert.True(t, x.CarbonCredits.Available.Equal(dec("60")))
	assert.True(t, x.CarbonCredits.Traded.Equal(dec("40")))
	assert.True(t, x.CarbonCredits.Total.Equal(dec("100")))

	history, err := f.h.transfers.ListTransferHistory(context.Background(), f.adminX, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TransactionPending, history[0].NewValue["status"])
	assert.Contains(t, f.h.eventTypes(), events.EventTransferInitiated)
}

func TestApproveTransferCreditsReceiver(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	tx := f.initiate(t, 40, "2.00")

	approved, err := f.h.transfers.DecideTransfer(ctx, f.adminY, tx.ID, true, "thanks")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, f.adminY.ID, *approved.ApprovedBy)

	y := f.h.org(t, f.orgY)
	assert.True(t, y.CarbonCredits.Total.Equal(dec("40")))
	assert.True(t, y.CarbonCredits.Available.Equal(dec("40")))

	x := f.h.org(t, f.orgX)
	assert.True(t, x.CarbonCredits.Available.Equal(dec("60")))
	assert.True(t, x.CarbonCredits.Traded.Equal(dec("40")))

	history, err := f.h.transfers.ListTransferHistory(ctx, f.adminY, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "thanks", history[1].NewValue["comment"])
	assert.Contains(t, f.h.eventTypes(), events.EventTransferCompleted)
}

func TestRejectTransferRestoresSender(t *testing.T) {
	f := newTransferFixture(t, 100)
	tx := f.initiate(t, 40, "2.00")

	rejected, err := f.h.transfers.DecideTransfer(context.Background(), f.adminY, tx.ID, false, "no thanks")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionRejected, rejected.Status)

	x := f.h.org(t, f.orgX)
	assert.True(t, x.CarbonCredits.Available.Equal(dec("100")))
	assert.True(t, x.CarbonCredits.Traded.IsZero())
	assert.True(t, f.h.org(t, f.orgY).CarbonCredits.Total.IsZero())
}

func TestCancelTransferBySender(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	tx := f.initiate(t, 25, "1.50")

	_, err := f.h.transfers.CancelTransfer(ctx, f.adminY, tx.ID, "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	cancelled, err := f.h.transfers.CancelTransfer(ctx, f.adminX, tx.ID, "changed our mind")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCancelled, cancelled.Status)
	assert.True(t, f.h.org(t, f.orgX).CarbonCredits.Available.Equal(dec("100")))
}

func TestTerminalTransferCannotTransitionAgain(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	tx := f.initiate(t, 40, "2.00")

	_, err := f.h.transfers.Approve(ctx, f.adminY, tx.ID, "")
	require.NoError(t, err)

	_, err = f.h.transfers.Approve(ctx, f.adminY, tx.ID, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = f.h.transfers.Reject(ctx, f.adminY, tx.ID, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = f.h.transfers.CancelTransfer(ctx, f.adminX, tx.ID, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	y := f.h.org(t, f.orgY)
	assert.True(t, y.CarbonCredits.Total.Equal(dec("40")))
	x := f.h.org(t, f.orgX)
	assert.True(t, x.CarbonCredits.Available.Equal(dec("60")))
}

func TestDecideTransferRequiresReceivingAdmin(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	tx := f.initiate(t, 40, "2.00")

	_, err := f.h.transfers.Approve(ctx, f.adminX, tx.ID, "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.h.transfers.Approve(ctx, f.adminY, "missing", "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	stored, err := f.h.transfers.GetTransfer(ctx, f.adminX, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPending, stored.Status)
}

func TestInitiateTransferInsufficientBalance(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()

	_, err := f.h.transfers.InitiateTransfer(ctx, f.adminX, InitiateTransferInput{
		ToOrganizationID: f.orgY,
		Credits:          150,
		PricePerCredit:   dec("1"),
		PaymentMethod:    domain.PaymentCrypto,
	})
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)

	x := f.h.org(t, f.orgX)
	assert.True(t, x.CarbonCredits.Available.Equal(dec("100")))
	assert.True(t, x.CarbonCredits.Traded.IsZero())

	txs, err := f.h.transfers.ListOrganizationTransfers(ctx, f.adminX, TransferListFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	entries, err := f.h.orgs.LedgerEntries(ctx, f.adminX, f.orgX, repository.Page{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInitiateTransferValidation(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()

	cases := map[string]InitiateTransferInput{
		"zero credits":    {ToOrganizationID: f.orgY, Credits: 0, PricePerCredit: dec("1"), PaymentMethod: domain.PaymentCrypto},
		"same org":        {ToOrganizationID: f.orgX, Credits: 1, PricePerCredit: dec("1"), PaymentMethod: domain.PaymentCrypto},
		"negative price":  {ToOrganizationID: f.orgY, Credits: 1, PricePerCredit: dec("-1"), PaymentMethod: domain.PaymentCrypto},
		"price precision": {ToOrganizationID: f.orgY, Credits: 1, PricePerCredit: dec("1.00001"), PaymentMethod: domain.PaymentCrypto},
		"payment method":  {ToOrganizationID: f.orgY, Credits: 1, PricePerCredit: dec("1"), PaymentMethod: "CASH"},
		"no recipient":    {Credits: 1, PricePerCredit: dec("1"), PaymentMethod: domain.PaymentCrypto},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.h.transfers.InitiateTransfer(ctx, f.adminX, in)
			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
	assert.True(t, f.h.org(t, f.orgX).CarbonCredits.Available.Equal(dec("100")))
}

func TestInitiateTransferRequiresApprovedRecipient(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	_, pending := f.h.employer(t, "z", domain.ApprovalPending, 0)

	_, err := f.h.transfers.InitiateTransfer(ctx, f.adminX, InitiateTransferInput{
		ToOrganizationID: pending.ID,
		Credits:          10,
		PricePerCredit:   dec("1"),
		PaymentMethod:    domain.PaymentBankTransfer,
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.h.transfers.InitiateTransfer(ctx, f.adminX, InitiateTransferInput{
		ToOrganizationID: "missing",
		Credits:          10,
		PricePerCredit:   dec("1"),
		PaymentMethod:    domain.PaymentBankTransfer,
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.True(t, f.h.org(t, f.orgX).CarbonCredits.Available.Equal(dec("100")))
}

func TestConcurrentInitiationsNeverOverdraw(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.h.transfers.InitiateTransfer(ctx, f.adminX, InitiateTransferInput{
				ToOrganizationID: f.orgY,
				Credits:          15,
				PricePerCredit:   dec("1"),
				PaymentMethod:    domain.PaymentBankTransfer,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	x := f.h.org(t, f.orgX)
	assert.True(t, x.CarbonCredits.Available.Equal(dec("10")))
	assert.True(t, x.CarbonCredits.Traded.Equal(dec("90")))
}

func TestConcurrentDecisionsSettleOnce(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	tx := f.initiate(t, 40, "2.00")

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.h.transfers.DecideTransfer(ctx, f.adminY, tx.ID, i%2 == 0, "")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	}
	assert.Equal(t, 1, ok)

	settled, err := f.h.transfers.GetTransfer(ctx, f.adminY, tx.ID)
	require.NoError(t, err)
	x, y := f.h.org(t, f.orgX), f.h.org(t, f.orgY)
	switch settled.Status {
	case domain.TransactionCompleted:
		assert.True(t, y.CarbonCredits.Total.Equal(dec("40")))
		assert.True(t, x.CarbonCredits.Available.Equal(dec("60")))
	case domain.TransactionRejected:
		assert.True(t, y.CarbonCredits.Total.IsZero())
		assert.True(t, x.CarbonCredits.Available.Equal(dec("100")))
	default:
		t.Fatalf("unexpected status %s", settled.Status)
	}
}

func TestMarketStatsCountCompletedOnly(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()

	empty, err := f.h.transfers.GetMarketStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalTransactions)
	assert.True(t, empty.TotalValue.IsZero())

	for _, seed := range []struct {
		credits int64
		price   string
	}{{10, "1"}, {20, "2"}, {5, "3"}} {
		tx := f.initiate(t, seed.credits, seed.price)
		_, err := f.h.transfers.Approve(ctx, f.adminY, tx.ID, "")
		require.NoError(t, err)
	}
	// pending and rejected transfers stay out of the aggregate
	f.initiate(t, 7, "9")
	rejected := f.initiate(t, 3, "9")
	_, err = f.h.transfers.Reject(ctx, f.adminY, rejected.ID, "")
	require.NoError(t, err)

	stats, err := f.h.transfers.GetMarketStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTransactions)
	assert.Equal(t, int64(35), stats.TotalCreditsTraded)
	assert.True(t, stats.AveragePrice.Equal(dec("2")), stats.AveragePrice.String())
	assert.True(t, stats.TotalValue.Equal(dec("65")), stats.TotalValue.String())
}

func TestUpdatePaymentDetailsIsInformational(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	bank := f.h.bankAdmin(t)
	tx := f.initiate(t, 10, "2")

	status := domain.PaymentFailed
	ref := "wire-42"
	updated, err := f.h.transfers.UpdatePaymentDetails(ctx, f.adminY, tx.ID, PaymentUpdateInput{Status: &status, TransactionID: &ref})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, updated.PaymentDetails.Status)
	assert.Equal(t, "wire-42", updated.PaymentDetails.TransactionID)
	assert.Equal(t, domain.TransactionPending, updated.Status)

	_, err = f.h.transfers.UpdatePaymentDetails(ctx, bank, tx.ID, PaymentUpdateInput{Status: &status})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	bogus := domain.PaymentStatus("LOST")
	_, err = f.h.transfers.UpdatePaymentDetails(ctx, f.adminX, tx.ID, PaymentUpdateInput{Status: &bogus})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	history, err := f.h.transfers.ListTransferHistory(ctx, bank, tx.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypePayment, history[1].ChangeType)
	assert.True(t, f.h.org(t, f.orgX).CarbonCredits.Available.Equal(dec("90")))
}

func TestTransferListings(t *testing.T) {
	f := newTransferFixture(t, 100)
	ctx := context.Background()
	bank := f.h.bankAdmin(t)
	first := f.initiate(t, 10, "1")
	f.initiate(t, 10, "1")
	_, err := f.h.transfers.Approve(ctx, f.adminY, first.ID, "")
	require.NoError(t, err)

	incoming, err := f.h.transfers.ListPendingIncoming(ctx, f.adminY, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, incoming, 1)

	mine, err := f.h.transfers.ListOrganizationTransfers(ctx, f.adminX, TransferListFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	completed, err := f.h.transfers.ListOrganizationTransfers(ctx, bank, TransferListFilter{Statuses: []domain.TransactionStatus{domain.TransactionCompleted}})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	outsider, _ := f.h.employer(t, "w", domain.ApprovalApproved, 0)
	_, err = f.h.transfers.GetTransfer(ctx, outsider, first.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
