package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/accrual"
	"github.com/spec-kit/carbon-ledger/internal/approval"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/ledger"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// TripService records commutes and settles verified ones into the ledger.
type TripService struct {
	trips   repository.TripRepository
	users   repository.UserRepository
	tx      repository.Transactor
	ledger  *ledger.Ledger
	gate    *approval.Gate
	metrics *observability.Metrics
	logger  *zap.Logger
	publisher
}

// TripDependencies bundles collaborators for the trip service.
type TripDependencies struct {
	TripRepo   repository.TripRepository
	UserRepo   repository.UserRepository
	Transactor repository.Transactor
	Ledger     *ledger.Ledger
	Gate       *approval.Gate
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// RecordTripInput describes a commute submitted by an employee.
type RecordTripInput struct {
	Date               time.Time
	Distance           decimal.Decimal
	TransportMode      string
	StartLocation      domain.Address
	EndLocation        domain.Address
	VerificationMethod domain.VerificationMethod
	VerificationData   domain.VerificationData
}

// ReviseTripInput carries the fields an owner may change on a PENDING trip.
type ReviseTripInput struct {
	Distance      *decimal.Decimal
	TransportMode *string
	StartLocation *domain.Address
	EndLocation   *domain.Address
}

// TripListFilter narrows trip listings.
type TripListFilter struct {
	Statuses []domain.TripStatus
	Page     repository.Page
}

// NewTripService constructs the service.
func NewTripService(deps TripDependencies) *TripService {
	return &TripService{
		trips:     deps.TripRepo,
		users:     deps.UserRepo,
		tx:        deps.Transactor,
		ledger:    deps.Ledger,
		gate:      deps.Gate,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("trip"),
		publisher: publisher{dispatcher: deps.Dispatcher},
	}
}

// RecordTrip stores a PENDING trip for the actor's organization with its
// credits computed from distance and mode.
func (s *TripService) RecordTrip(ctx context.Context, actor *domain.User, in RecordTripInput) (*domain.Trip, error) {
	if err := s.gate.Authorize(ctx, actor, approval.RecordTrip, approval.Resource{}); err != nil {
		return nil, err
	}
	mode, err := accrual.ParseTransportMode(in.TransportMode)
	if err != nil {
		return nil, err
	}
	trip, err := accrual.NewTrip(accrual.TripInput{
		UserID:             actor.ID,
		OrganizationID:     *actor.OrganizationID,
		Date:               in.Date,
		Distance:           in.Distance,
		TransportMode:      mode,
		StartLocation:      in.StartLocation,
		EndLocation:        in.EndLocation,
		VerificationMethod: in.VerificationMethod,
		VerificationData:   in.VerificationData,
	})
	if err != nil {
		return nil, err
	}
	if err := s.trips.Create(ctx, trip); err != nil {
		return nil, err
	}

	s.publishTrip(ctx, events.EventTripRecorded, actor.ID, trip)
	return trip, nil
}

// VerifyTrip marks a PENDING trip VERIFIED and credits its organization and
// owner in one unit of work.
func (s *TripService) VerifyTrip(ctx context.Context, actor *domain.User, tripID, notes string) (*domain.Trip, error) {
	current, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, notFound(err, "trip", tripID)
	}
	if err := s.gate.Authorize(ctx, actor, approval.VerifyTrip, approval.Resource{Trip: current}); err != nil {
		return nil, err
	}
	if err := requirePendingTrip(current, domain.TripVerified); err != nil {
		return nil, err
	}

	ctx, release, err := s.lockOrganization(ctx, current)
	if err != nil {
		return nil, err
	}
	defer release()

	var trip *domain.Trip
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.trips.GetForUpdate(ctx, tripID)
		if err != nil {
			return notFound(err, "trip", tripID)
		}
		if err := requirePendingTrip(t, domain.TripVerified); err != nil {
			return err
		}

		t.Status = domain.TripVerified
		t.VerificationData.VerifiedBy = ptr(actor.ID)
		t.VerificationData.VerificationNotes = strings.TrimSpace(notes)
		if err := s.trips.Update(ctx, t); err != nil {
			return err
		}
		trip = t

		if t.CarbonCreditsEarned.IsZero() {
			return nil
		}
		if _, err := s.ledger.Credit(ctx, ledger.Mutation{
			OrganizationID: t.OrganizationID,
			Amount:         t.CarbonCreditsEarned,
			SourceType:     domain.SourceTrip,
			SourceID:       t.ID,
		}); err != nil {
			return err
		}

		if err := s.users.AddCarbonCredits(ctx, t.UserID, t.CarbonCreditsEarned); err != nil {
			return notFound(err, "user", t.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCreditsAccrued(string(trip.TransportMode), trip.CarbonCreditsEarned.InexactFloat64())
	s.logger.Info("trip verified",
		zap.String("trip_id", trip.ID),
		zap.String("organization_id", trip.OrganizationID),
		zap.String("credits", trip.CarbonCreditsEarned.String()),
	)
	s.publishTrip(ctx, events.EventTripVerified, actor.ID, trip)
	return trip, nil
}

// RejectTrip marks a PENDING trip REJECTED. No credits move.
func (s *TripService) RejectTrip(ctx context.Context, actor *domain.User, tripID, notes string) (*domain.Trip, error) {
	current, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, notFound(err, "trip", tripID)
	}
	if err := s.gate.Authorize(ctx, actor, approval.VerifyTrip, approval.Resource{Trip: current}); err != nil {
		return nil, err
	}

	ctx, release, err := s.lockOrganization(ctx, current)
	if err != nil {
		return nil, err
	}
	defer release()

	var trip *domain.Trip
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.trips.GetForUpdate(ctx, tripID)
		if err != nil {
			return notFound(err, "trip", tripID)
		}
		if err := requirePendingTrip(t, domain.TripRejected); err != nil {
			return err
		}
		t.Status = domain.TripRejected
		t.VerificationData.VerifiedBy = ptr(actor.ID)
		t.VerificationData.VerificationNotes = strings.TrimSpace(notes)
		trip = t
		return s.trips.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.publishTrip(ctx, events.EventTripRejected, actor.ID, trip)
	return trip, nil
}

// ReviseTrip lets the owner correct a PENDING trip. Credits are recomputed.
func (s *TripService) ReviseTrip(ctx context.Context, actor *domain.User, tripID string, in ReviseTripInput) (*domain.Trip, error) {
	ctx, release, err := s.ownedTrip(ctx, actor, tripID)
	if err != nil {
		return nil, err
	}
	defer release()

	var trip *domain.Trip
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.trips.GetForUpdate(ctx, tripID)
		if err != nil {
			return notFound(err, "trip", tripID)
		}
		if t.Status != domain.TripPending {
			return apperrors.NewInvalidTransition("only pending trips can be changed", map[string]any{"trip_id": t.ID, "status": t.Status})
		}

		distance, mode := t.Distance, t.TransportMode
		if in.Distance != nil {
			distance = *in.Distance
		}
		if in.TransportMode != nil {
			if mode, err = accrual.ParseTransportMode(*in.TransportMode); err != nil {
				return err
			}
		}
		if err := accrual.Revise(t, distance, mode); err != nil {
			return err
		}
		if in.StartLocation != nil {
			t.StartLocation = *in.StartLocation
		}
		if in.EndLocation != nil {
			t.EndLocation = *in.EndLocation
		}
		trip = t
		return s.trips.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// DeleteTrip removes a PENDING trip owned by the actor.
func (s *TripService) DeleteTrip(ctx context.Context, actor *domain.User, tripID string) error {
	ctx, release, err := s.ownedTrip(ctx, actor, tripID)
	if err != nil {
		return err
	}
	defer release()

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		t, err := s.trips.GetForUpdate(ctx, tripID)
		if err != nil {
			return notFound(err, "trip", tripID)
		}
		if t.Status != domain.TripPending {
			return apperrors.NewInvalidTransition("only pending trips can be deleted", map[string]any{"trip_id": t.ID, "status": t.Status})
		}
		return s.trips.Delete(ctx, tripID)
	})
}

// GetTrip returns a trip visible to its owner or the organization admin.
func (s *TripService) GetTrip(ctx context.Context, actor *domain.User, tripID string) (*domain.Trip, error) {
	t, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, notFound(err, "trip", tripID)
	}
	if err := s.gate.Authorize(ctx, actor, approval.ViewTrip, approval.Resource{Trip: t}); err != nil {
		return nil, err
	}
	return t, nil
}

// ListMyTrips lists the actor's own trips, most recent first.
func (s *TripService) ListMyTrips(ctx context.Context, actor *domain.User, filter TripListFilter) ([]domain.Trip, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return s.trips.List(ctx, repository.TripFilter{
		UserID:   &actor.ID,
		Statuses: filter.Statuses,
		Page:     filter.Page,
	})
}

// ListOrganizationTrips lists trips of the actor's organization.
func (s *TripService) ListOrganizationTrips(ctx context.Context, actor *domain.User, filter TripListFilter) ([]domain.Trip, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if actor.OrganizationID == nil {
		return nil, apperrors.NewValidationError("user has no organization", nil)
	}
	if err := s.gate.Authorize(ctx, actor, approval.ListOrganizationTrips, approval.Resource{OrganizationID: *actor.OrganizationID}); err != nil {
		return nil, err
	}
	return s.trips.List(ctx, repository.TripFilter{
		OrganizationID: actor.OrganizationID,
		Statuses:       filter.Statuses,
		Page:           filter.Page,
	})
}

// lockOrganization serializes status changes of trips in one organization
// with the balance mutations they cause.
func (s *TripService) lockOrganization(ctx context.Context, t *domain.Trip) (context.Context, ledger.Release, error) {
	return s.ledger.Lock(ctx, t.OrganizationID)
}

// ownedTrip authorizes the owner and locks the trip's organization.
func (s *TripService) ownedTrip(ctx context.Context, actor *domain.User, tripID string) (context.Context, ledger.Release, error) {
	t, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return ctx, nil, notFound(err, "trip", tripID)
	}
	if err := s.gate.Authorize(ctx, actor, approval.EditTrip, approval.Resource{Trip: t}); err != nil {
		return ctx, nil, err
	}
	return s.lockOrganization(ctx, t)
}

func (s *TripService) publishTrip(ctx context.Context, eventType events.EventType, actorID string, t *domain.Trip) {
	s.publish(ctx, events.Event{
		Type:      eventType,
		SubjectID: t.ID,
		ActorID:   actorID,
		Payload: events.TripPayload{
			UserID:         t.UserID,
			OrganizationID: t.OrganizationID,
			TransportMode:  t.TransportMode,
			Credits:        t.CarbonCreditsEarned.String(),
			Status:         t.Status,
		},
	})
}

func requirePendingTrip(t *domain.Trip, target domain.TripStatus) error {
	if t.Status != domain.TripPending {
		return apperrors.NewInvalidTransition("trip is no longer pending", map[string]any{
			"trip_id":   t.ID,
			"status":    t.Status,
			"requested": target,
		})
	}
	return nil
}
