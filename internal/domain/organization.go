package domain

import "time"

// Organization is the employer-side account holding a pool of carbon credits.
type Organization struct {
	ID             string
	Name           string
	Address        Address
	AdminID        string
	Status         ApprovalStatus
	CarbonCredits  CarbonCredits
	BankApproverID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AdministeredBy reports whether userID is the registered admin.
func (o *Organization) AdministeredBy(userID string) bool {
	return o != nil && userID != "" && o.AdminID == userID
}

// CanTransact reports whether the organization passed bank approval.
func (o *Organization) CanTransact() bool {
	return o != nil && o.Status == ApprovalApproved
}
