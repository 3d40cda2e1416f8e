package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role enumerates account types.
type Role string

const (
	RoleEmployee    Role = "EMPLOYEE"
	RoleEmployer    Role = "EMPLOYER"
	RoleBankAdmin   Role = "BANK_ADMIN"
	RoleSystemAdmin Role = "SYSTEM_ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleEmployer, RoleBankAdmin, RoleSystemAdmin:
		return true
	}
	return false
}

// ApprovalStatus is the lifecycle gate shared by users and organizations.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// DefaultMonthlyDrivingQuota is the per-user mileage allowance in miles.
var DefaultMonthlyDrivingQuota = decimal.NewFromInt(1000)

// Profile holds personal details of a user.
type Profile struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Phone     string  `json:"phone,omitempty"`
	Address   Address `json:"address"`
}

// User is an account holder of any role.
type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	Status              ApprovalStatus
	Profile             Profile
	OrganizationID      *string
	MonthlyDrivingQuota decimal.Decimal
	// CarbonCredits accumulates the user's verified trip credits.
	CarbonCredits decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BelongsTo reports whether the user is affiliated with orgID.
func (u *User) BelongsTo(orgID string) bool {
	return u != nil && u.OrganizationID != nil && *u.OrganizationID == orgID
}
