package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransportMode enumerates low-emission commute options.
type TransportMode string

const (
	TransportPublic       TransportMode = "PUBLIC_TRANSPORT"
	TransportCarpool      TransportMode = "CARPOOL"
	TransportRideshare    TransportMode = "RIDESHARE"
	TransportWorkFromHome TransportMode = "WORK_FROM_HOME"
)

// TripStatus enumerates verification states of a trip.
type TripStatus string

const (
	TripPending  TripStatus = "PENDING"
	TripVerified TripStatus = "VERIFIED"
	TripRejected TripStatus = "REJECTED"
)

// VerificationMethod describes how a trip is evidenced.
type VerificationMethod string

const (
	VerificationGPS          VerificationMethod = "GPS"
	VerificationTicketUpload VerificationMethod = "TICKET_UPLOAD"
	VerificationManualReview VerificationMethod = "MANUAL_REVIEW"
)

// Valid reports whether m is a known verification method.
func (m VerificationMethod) Valid() bool {
	switch m {
	case VerificationGPS, VerificationTicketUpload, VerificationManualReview:
		return true
	}
	return false
}

// GPSPoint is a single sample of a recorded track.
type GPSPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// VerificationData carries trip evidence and the reviewer's outcome.
type VerificationData struct {
	GPSTrack          []GPSPoint `json:"gps_track,omitempty"`
	TicketImage       string     `json:"ticket_image,omitempty"`
	VerifiedBy        *string    `json:"verified_by,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
}

// Trip is a recorded commute. CarbonCreditsEarned is derived from Distance and
// TransportMode and is only written through accrual.NewTrip and accrual.Revise.
type Trip struct {
	ID                  string
	UserID              string
	OrganizationID      string
	Date                time.Time
	TransportMode       TransportMode
	StartLocation       Address
	EndLocation         Address
	Distance            decimal.Decimal
	CarbonCreditsEarned decimal.Decimal
	Status              TripStatus
	VerificationMethod  VerificationMethod
	VerificationData    VerificationData
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
