package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerOperation names the balance primitive that produced an entry.
type LedgerOperation string

const (
	LedgerCredit           LedgerOperation = "CREDIT"
	LedgerDebitForTransfer LedgerOperation = "DEBIT_FOR_TRANSFER"
	LedgerReverseDebit     LedgerOperation = "REVERSE_DEBIT"
)

// LedgerSourceType identifies what caused a balance mutation.
type LedgerSourceType string

const (
	SourceTrip     LedgerSourceType = "TRIP"
	SourceTransfer LedgerSourceType = "TRANSFER"
)

// LedgerEntry records one applied balance mutation and the resulting balance.
type LedgerEntry struct {
	ID             string
	OrganizationID string
	Operation      LedgerOperation
	Amount         decimal.Decimal
	SourceType     LedgerSourceType
	SourceID       string
	BalanceAfter   CarbonCredits
	CreatedAt      time.Time
}
