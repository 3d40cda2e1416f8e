package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// InitiateTransferRequest payload for POST /api/credits/transactions.
type InitiateTransferRequest struct {
	FromOrganizationID string          `json:"from_organization_id"`
	ToOrganizationID   string          `json:"to_organization_id"`
	Credits            int64           `json:"credits"`
	PricePerCredit     decimal.Decimal `json:"price_per_credit"`
	PaymentMethod      string          `json:"payment_method"`
	Notes              string          `json:"notes"`
}

// DecisionRequest payload for POST /api/credits/transactions/:id/decision.
type DecisionRequest struct {
	Approve *bool  `json:"approve"`
	Comment string `json:"comment"`
}

// CommentRequest carries an optional comment or reason.
type CommentRequest struct {
	Comment string `json:"comment"`
}

// PaymentUpdateRequest payload for PATCH /api/credits/transactions/:id/payment.
type PaymentUpdateRequest struct {
	Status        *domain.PaymentStatus `json:"status"`
	TransactionID *string               `json:"transaction_id"`
}

// PaymentDetailsResponse is informational payment metadata.
type PaymentDetailsResponse struct {
	Method        domain.PaymentMethod `json:"method"`
	TransactionID string               `json:"transaction_id,omitempty"`
	Status        domain.PaymentStatus `json:"status"`
}

// TransactionResponse is the public view of a transfer.
type TransactionResponse struct {
	ID                 string                   `json:"id"`
	FromOrganizationID string                   `json:"from_organization_id"`
	ToOrganizationID   string                   `json:"to_organization_id"`
	Credits            int64                    `json:"credits"`
	PricePerCredit     decimal.Decimal          `json:"price_per_credit"`
	TotalAmount        decimal.Decimal          `json:"total_amount"`
	Status             domain.TransactionStatus `json:"status"`
	InitiatedBy        string                   `json:"initiated_by"`
	ApprovedBy         *string                  `json:"approved_by"`
	Notes              string                   `json:"notes,omitempty"`
	PaymentDetails     PaymentDetailsResponse   `json:"payment_details"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// NewTransactionResponse maps a transfer.
func NewTransactionResponse(t *domain.CreditTransaction) TransactionResponse {
	return TransactionResponse{
		ID:                 t.ID,
		FromOrganizationID: t.FromOrganizationID,
		ToOrganizationID:   t.ToOrganizationID,
		Credits:            t.Credits,
		PricePerCredit:     t.PricePerCredit,
		TotalAmount:        t.TotalAmount(),
		Status:             t.Status,
		InitiatedBy:        t.InitiatedBy,
		ApprovedBy:         t.ApprovedBy,
		Notes:              t.Notes,
		PaymentDetails: PaymentDetailsResponse{
			Method:        t.PaymentDetails.Method,
			TransactionID: t.PaymentDetails.TransactionID,
			Status:        t.PaymentDetails.Status,
		},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// HistoryResponse is one audit trail entry.
type HistoryResponse struct {
	ID          string                       `json:"id"`
	ChangedByID *string                      `json:"changed_by_id"`
	ChangeType  domain.TransactionChangeType `json:"change_type"`
	OldValue    map[string]any               `json:"old_value,omitempty"`
	NewValue    map[string]any               `json:"new_value"`
	CreatedAt   time.Time                    `json:"created_at"`
}

// NewHistoryResponse maps a history entry.
func NewHistoryResponse(h *domain.TransactionHistory) HistoryResponse {
	return HistoryResponse{
		ID:          h.ID,
		ChangedByID: h.ChangedByID,
		ChangeType:  h.ChangeType,
		OldValue:    h.OldValue,
		NewValue:    h.NewValue,
		CreatedAt:   h.CreatedAt,
	}
}

// MarketStatsResponse aggregates completed transfers.
type MarketStatsResponse struct {
	TotalTransactions  int64           `json:"total_transactions"`
	TotalCreditsTraded int64           `json:"total_credits_traded"`
	AveragePrice       decimal.Decimal `json:"average_price"`
	TotalValue         decimal.Decimal `json:"total_value"`
}

// NewMarketStatsResponse maps market stats.
func NewMarketStatsResponse(s domain.MarketStats) MarketStatsResponse {
	return MarketStatsResponse{
		TotalTransactions:  s.TotalTransactions,
		TotalCreditsTraded: s.TotalCreditsTraded,
		AveragePrice:       s.AveragePrice,
		TotalValue:         s.TotalValue,
	}
}
