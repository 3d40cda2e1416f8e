// Package accrual converts recorded trips into carbon credits.
package accrual

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// PointsPerMile is the credit rate for each transport mode.
var PointsPerMile = map[domain.TransportMode]decimal.Decimal{
	domain.TransportPublic:       decimal.NewFromInt(3),
	domain.TransportCarpool:      decimal.NewFromInt(2),
	domain.TransportRideshare:    decimal.NewFromFloat(1.5),
	domain.TransportWorkFromHome: decimal.NewFromInt(4),
}

// DistanceScale is the number of decimal places a distance may carry.
const DistanceScale = 4

// ParseTransportMode normalizes and validates a transport mode.
func ParseTransportMode(raw string) (domain.TransportMode, error) {
	mode := domain.TransportMode(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := PointsPerMile[mode]; !ok {
		return "", apperrors.NewValidationError("unknown transport mode", map[string]any{"transport_mode": raw})
	}
	return mode, nil
}

// ComputeCredits returns distance × PointsPerMile[mode]. WORK_FROM_HOME goes
// through the same formula, so a zero distance earns zero credits.
func ComputeCredits(distance decimal.Decimal, mode domain.TransportMode) (decimal.Decimal, error) {
	rate, ok := PointsPerMile[mode]
	if !ok {
		return decimal.Zero, apperrors.NewValidationError("unknown transport mode", map[string]any{"transport_mode": string(mode)})
	}
	if distance.IsNegative() {
		return decimal.Zero, apperrors.NewValidationError("distance must not be negative", map[string]any{"distance": distance.String()})
	}
	if !distance.Equal(distance.Truncate(DistanceScale)) {
		return decimal.Zero, apperrors.NewValidationError("distance has too many decimal places", map[string]any{"distance": distance.String(), "max_scale": DistanceScale})
	}
	return distance.Mul(rate), nil
}

// TripInput is the caller-supplied part of a trip.
type TripInput struct {
	UserID             string
	OrganizationID     string
	Date               time.Time
	Distance           decimal.Decimal
	TransportMode      domain.TransportMode
	StartLocation      domain.Address
	EndLocation        domain.Address
	VerificationMethod domain.VerificationMethod
	VerificationData   domain.VerificationData
}

// NewTrip builds a PENDING trip with its credits computed.
func NewTrip(in TripInput) (*domain.Trip, error) {
	if !in.VerificationMethod.Valid() {
		return nil, apperrors.NewValidationError("unknown verification method", map[string]any{"verification_method": string(in.VerificationMethod)})
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	trip := &domain.Trip{
		UserID:             in.UserID,
		OrganizationID:     in.OrganizationID,
		Date:               date,
		StartLocation:      in.StartLocation,
		EndLocation:        in.EndLocation,
		Status:             domain.TripPending,
		VerificationMethod: in.VerificationMethod,
		VerificationData: domain.VerificationData{
			GPSTrack:    in.VerificationData.GPSTrack,
			TicketImage: in.VerificationData.TicketImage,
		},
	}
	if err := Revise(trip, in.Distance, in.TransportMode); err != nil {
		return nil, err
	}
	return trip, nil
}

// Revise sets distance and mode on trip and overwrites its earned credits.
func Revise(trip *domain.Trip, distance decimal.Decimal, mode domain.TransportMode) error {
	credits, err := ComputeCredits(distance, mode)
	if err != nil {
		return err
	}
	trip.Distance = distance
	trip.TransportMode = mode
	trip.CarbonCreditsEarned = credits
	return nil
}
