package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
)

// RecordTripRequest payload for POST /api/trips. Earned credits are always
// computed server side.
type RecordTripRequest struct {
	Date               *time.Time                `json:"date"`
	Distance           decimal.Decimal           `json:"distance"`
	TransportMode      string                    `json:"transport_mode"`
	StartLocation      domain.Address            `json:"start_location"`
	EndLocation        domain.Address            `json:"end_location"`
	VerificationMethod domain.VerificationMethod `json:"verification_method"`
	VerificationData   struct {
		GPSTrack    []domain.GPSPoint `json:"gps_track"`
		TicketImage string            `json:"ticket_image"`
	} `json:"verification_data"`
}

// ReviseTripRequest payload for PATCH /api/trips/:id.
type ReviseTripRequest struct {
	Distance      *decimal.Decimal `json:"distance"`
	TransportMode *string          `json:"transport_mode"`
	StartLocation *domain.Address  `json:"start_location"`
	EndLocation   *domain.Address  `json:"end_location"`
}

// TripReviewRequest payload for verify and reject.
type TripReviewRequest struct {
	Notes string `json:"notes"`
}

// TripResponse is the public view of a trip.
type TripResponse struct {
	ID                  string                    `json:"id"`
	UserID              string                    `json:"user_id"`
	OrganizationID      string                    `json:"organization_id"`
	Date                time.Time                 `json:"date"`
	TransportMode       domain.TransportMode      `json:"transport_mode"`
	StartLocation       domain.Address            `json:"start_location"`
	EndLocation         domain.Address            `json:"end_location"`
	Distance            decimal.Decimal           `json:"distance"`
	CarbonCreditsEarned decimal.Decimal           `json:"carbon_credits_earned"`
	Status              domain.TripStatus         `json:"status"`
	VerificationMethod  domain.VerificationMethod `json:"verification_method"`
	VerificationData    domain.VerificationData   `json:"verification_data"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

// NewTripResponse maps a trip.
func NewTripResponse(t *domain.Trip) TripResponse {
	return TripResponse{
		ID:                  t.ID,
		UserID:              t.UserID,
		OrganizationID:      t.OrganizationID,
		Date:                t.Date,
		TransportMode:       t.TransportMode,
		StartLocation:       t.StartLocation,
		EndLocation:         t.EndLocation,
		Distance:            t.Distance,
		CarbonCreditsEarned: t.CarbonCreditsEarned,
		Status:              t.Status,
		VerificationMethod:  t.VerificationMethod,
		VerificationData:    t.VerificationData,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}
