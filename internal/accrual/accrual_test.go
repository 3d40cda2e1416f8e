package accrual

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

func TestComputeCredits(t *testing.T) {
	tests := []struct {
		distance string
		mode     domain.TransportMode
		want     string
	}{
		{"10", domain.TransportPublic, "30"},
		{"10", domain.TransportCarpool, "20"},
		{"10", domain.TransportRideshare, "15"},
		{"0.5", domain.TransportRideshare, "0.75"},
		{"0", domain.TransportWorkFromHome, "0"},
		{"2", domain.TransportWorkFromHome, "8"},
		{"0", domain.TransportPublic, "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode)+"/"+tt.distance, func(t *testing.T) {
			got, err := ComputeCredits(decimal.RequireFromString(tt.distance), tt.mode)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestComputeCreditsIsDefinedForEveryMode(t *testing.T) {
	for mode := range PointsPerMile {
		got, err := ComputeCredits(decimal.NewFromInt(7), mode)
		require.NoError(t, err)
		assert.False(t, got.IsNegative())
	}
}

func TestComputeCreditsRejectsBadInput(t *testing.T) {
	_, err := ComputeCredits(decimal.NewFromInt(1), "BICYCLE")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = ComputeCredits(decimal.NewFromInt(-1), domain.TransportPublic)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = ComputeCredits(decimal.RequireFromString("1.00001"), domain.TransportPublic)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestParseTransportMode(t *testing.T) {
	mode, err := ParseTransportMode(" carpool ")
	require.NoError(t, err)
	assert.Equal(t, domain.TransportCarpool, mode)

	_, err = ParseTransportMode("walking")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNewTripComputesCredits(t *testing.T) {
	trip, err := NewTrip(TripInput{
		UserID:             "u1",
		OrganizationID:     "o1",
		Distance:           decimal.NewFromInt(10),
		TransportMode:      domain.TransportPublic,
		VerificationMethod: domain.VerificationGPS,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TripPending, trip.Status)
	assert.True(t, trip.CarbonCreditsEarned.Equal(decimal.NewFromInt(30)))
	assert.False(t, trip.Date.IsZero())
}

func TestNewTripIgnoresCallerVerdict(t *testing.T) {
	reviewer := "someone"
	trip, err := NewTrip(TripInput{
		Distance:           decimal.NewFromInt(1),
		TransportMode:      domain.TransportCarpool,
		VerificationMethod: domain.VerificationManualReview,
		VerificationData:   domain.VerificationData{VerifiedBy: &reviewer, VerificationNotes: "ok"},
	})
	require.NoError(t, err)
	assert.Nil(t, trip.VerificationData.VerifiedBy)
	assert.Empty(t, trip.VerificationData.VerificationNotes)
}

func TestNewTripRejectsUnknownVerificationMethod(t *testing.T) {
	_, err := NewTrip(TripInput{Distance: decimal.NewFromInt(1), TransportMode: domain.TransportPublic, VerificationMethod: "SELFIE"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestReviseOverwritesCredits(t *testing.T) {
	trip, err := NewTrip(TripInput{
		Distance:           decimal.NewFromInt(10),
		TransportMode:      domain.TransportPublic,
		VerificationMethod: domain.VerificationGPS,
	})
	require.NoError(t, err)

	require.NoError(t, Revise(trip, decimal.NewFromInt(4), domain.TransportCarpool))
	assert.True(t, trip.CarbonCreditsEarned.Equal(decimal.NewFromInt(8)))

	require.NoError(t, Revise(trip, decimal.Zero, domain.TransportWorkFromHome))
	assert.True(t, trip.CarbonCreditsEarned.IsZero())

	err = Revise(trip, decimal.NewFromInt(-3), domain.TransportCarpool)
	require.Error(t, err)
	assert.True(t, trip.CarbonCreditsEarned.IsZero(), "failed revise keeps previous value")
}
