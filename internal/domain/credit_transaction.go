package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus enumerates credit transfer states.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionCancelled TransactionStatus = "CANCELLED"
	TransactionRejected  TransactionStatus = "REJECTED"
)

// IsTerminal reports whether no further transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionCompleted, TransactionCancelled, TransactionRejected:
		return true
	}
	return false
}

// PaymentMethod enumerates settlement rails for a transfer.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentCrypto       PaymentMethod = "CRYPTO"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentBankTransfer, PaymentCreditCard, PaymentCrypto:
		return true
	}
	return false
}

// PaymentStatus tracks settlement outside the ledger. It has no effect on the
// transaction's own state machine.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// PaymentDetails is informational payment metadata.
type PaymentDetails struct {
	Method        PaymentMethod
	TransactionID string
	Status        PaymentStatus
}

// CreditTransaction is a transfer of credits between two organizations.
type CreditTransaction struct {
	ID                 string
	FromOrganizationID string
	ToOrganizationID   string
	Credits            int64
	PricePerCredit     decimal.Decimal
	totalAmount        decimal.Decimal
	Status             TransactionStatus
	InitiatedBy        string
	ApprovedBy         *string
	Notes              string
	PaymentDetails     PaymentDetails
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewCreditTransaction builds a PENDING transaction with its total derived.
func NewCreditTransaction(fromOrgID, toOrgID string, credits int64, price decimal.Decimal, method PaymentMethod, initiatedBy string) *CreditTransaction {
	tx := &CreditTransaction{
		FromOrganizationID: fromOrgID,
		ToOrganizationID:   toOrgID,
		Status:             TransactionPending,
		InitiatedBy:        initiatedBy,
		PaymentDetails: PaymentDetails{
			Method: method,
			Status: PaymentPending,
		},
	}
	tx.Reprice(credits, price)
	return tx
}

// Reprice sets credits and price and recomputes the total.
func (t *CreditTransaction) Reprice(credits int64, price decimal.Decimal) {
	t.Credits = credits
	t.PricePerCredit = price
	t.totalAmount = price.Mul(decimal.NewFromInt(credits))
}

// TotalAmount is credits × pricePerCredit.
func (t *CreditTransaction) TotalAmount() decimal.Decimal {
	return t.totalAmount
}

// CreditAmount is Credits as a ledger amount.
func (t *CreditTransaction) CreditAmount() decimal.Decimal {
	return decimal.NewFromInt(t.Credits)
}

// Involves reports whether orgID is either side of the transfer.
func (t *CreditTransaction) Involves(orgID string) bool {
	return t.FromOrganizationID == orgID || t.ToOrganizationID == orgID
}
