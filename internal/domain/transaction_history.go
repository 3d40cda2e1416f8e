package domain

import "time"

// TransactionChangeType captures what changed in a history entry.
type TransactionChangeType string

const (
	ChangeTypeStatus  TransactionChangeType = "STATUS_CHANGE"
	ChangeTypePayment TransactionChangeType = "PAYMENT_CHANGE"
)

// TransactionHistory is an immutable audit trail entry for a credit transaction.
type TransactionHistory struct {
	ID            string
	TransactionID string
	ChangedByID   *string
	ChangeType    TransactionChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
