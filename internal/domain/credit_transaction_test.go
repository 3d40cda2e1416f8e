package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewCreditTransactionDerivesTotal(t *testing.T) {
	tx := NewCreditTransaction("x", "y", 40, decimal.RequireFromString("2.00"), PaymentBankTransfer, "admin-x")

	assert.Equal(t, TransactionPending, tx.Status)
	assert.Equal(t, PaymentPending, tx.PaymentDetails.Status)
	assert.True(t, tx.TotalAmount().Equal(decimal.NewFromInt(80)))
	assert.True(t, tx.Involves("x"))
	assert.True(t, tx.Involves("y"))
	assert.False(t, tx.Involves("z"))

	tx.Reprice(10, decimal.RequireFromString("1.5"))
	assert.True(t, tx.TotalAmount().Equal(decimal.NewFromInt(15)))
}

func TestTransactionStatusTerminal(t *testing.T) {
	assert.False(t, TransactionPending.IsTerminal())
	assert.True(t, TransactionCompleted.IsTerminal())
	assert.True(t, TransactionCancelled.IsTerminal())
	assert.True(t, TransactionRejected.IsTerminal())
}
