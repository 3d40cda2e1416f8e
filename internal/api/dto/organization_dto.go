package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// CreditsResponse is an organization balance.
type CreditsResponse struct {
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Traded    decimal.Decimal `json:"traded"`
}

// NewCreditsResponse maps a balance.
func NewCreditsResponse(c domain.CarbonCredits) CreditsResponse {
	return CreditsResponse{Total: c.Total, Available: c.Available, Traded: c.Traded}
}

// OrganizationResponse is the public view of an organization.
type OrganizationResponse struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Address        domain.Address        `json:"address"`
	AdminID        string                `json:"admin_id"`
	Status         domain.ApprovalStatus `json:"status"`
	CarbonCredits  CreditsResponse       `json:"carbon_credits"`
	BankApproverID *string               `json:"bank_approver_id"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// NewOrganizationResponse maps an organization.
func NewOrganizationResponse(o *domain.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:             o.ID,
		Name:           o.Name,
		Address:        o.Address,
		AdminID:        o.AdminID,
		Status:         o.Status,
		CarbonCredits:  NewCreditsResponse(o.CarbonCredits),
		BankApproverID: o.BankApproverID,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// AddEmployeeRequest payload.
type AddEmployeeRequest struct {
	Email string `json:"email"`
}

// LedgerEntryResponse is one balance mutation.
type LedgerEntryResponse struct {
	ID           string                  `json:"id"`
	Operation    domain.LedgerOperation  `json:"operation"`
	Amount       decimal.Decimal         `json:"amount"`
	SourceType   domain.LedgerSourceType `json:"source_type"`
	SourceID     string                  `json:"source_id"`
	BalanceAfter CreditsResponse         `json:"balance_after"`
	CreatedAt    time.Time               `json:"created_at"`
}

// NewLedgerEntryResponse maps a ledger entry.
func NewLedgerEntryResponse(e *domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:           e.ID,
		Operation:    e.Operation,
		Amount:       e.Amount,
		SourceType:   e.SourceType,
		SourceID:     e.SourceID,
		BalanceAfter: NewCreditsResponse(e.BalanceAfter),
		CreatedAt:    e.CreatedAt,
	}
}
