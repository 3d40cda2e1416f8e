package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Email        string               `json:"email"`
	Password     string               `json:"password"`
	Role         domain.Role          `json:"role"`
	Profile      domain.Profile       `json:"profile"`
	Organization *OrganizationPayload `json:"organization"`
}

// OrganizationPayload is the organization an employer registers with.
type OrganizationPayload struct {
	Name    string         `json:"name"`
	Address domain.Address `json:"address"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest payload for PATCH /api/auth/me.
type UpdateProfileRequest struct {
	Profile struct {
		FirstName *string         `json:"first_name"`
		LastName  *string         `json:"last_name"`
		Phone     *string         `json:"phone"`
		Address   *domain.Address `json:"address"`
	} `json:"profile"`
}

// ChangePasswordRequest payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID             string                `json:"id"`
	Email          string                `json:"email"`
	Role           domain.Role           `json:"role"`
	Status         domain.ApprovalStatus `json:"status"`
	Profile        domain.Profile        `json:"profile"`
	OrganizationID *string               `json:"organization_id"`
	CarbonCredits  decimal.Decimal       `json:"carbon_credits"`
	CreatedAt      time.Time             `json:"created_at"`
}

// NewUserResponse maps a user, dropping the password hash.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		Role:           u.Role,
		Status:         u.Status,
		Profile:        u.Profile,
		OrganizationID: u.OrganizationID,
		CarbonCredits:  u.CarbonCredits,
		CreatedAt:      u.CreatedAt,
	}
}
