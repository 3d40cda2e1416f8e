package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/carbon-ledger/internal/api/dto"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/service"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// TripsHandler exposes commute recording and review.
type TripsHandler struct {
	service *service.TripService
}

// NewTripsHandler constructs handler.
func NewTripsHandler(tripService *service.TripService) *TripsHandler {
	return &TripsHandler{service: tripService}
}

// Record handles POST /api/trips.
func (h *TripsHandler) Record(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.RecordTripRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	in := service.RecordTripInput{
		Distance:           req.Distance,
		TransportMode:      req.TransportMode,
		StartLocation:      req.StartLocation,
		EndLocation:        req.EndLocation,
		VerificationMethod: req.VerificationMethod,
		VerificationData: domain.VerificationData{
			GPSTrack:    req.VerificationData.GPSTrack,
			TicketImage: req.VerificationData.TicketImage,
		},
	}
	if req.Date != nil {
		in.Date = req.Date.UTC()
	}
	trip, err := h.service.RecordTrip(c.UserContext(), actor, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTripResponse(trip)})
}

// ListMine handles GET /api/trips.
func (h *TripsHandler) ListMine(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	trips, err := h.service.ListMyTrips(c.UserContext(), actor, tripFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tripResponses(trips)})
}

// ListOrganization handles GET /api/trips/organization.
func (h *TripsHandler) ListOrganization(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	trips, err := h.service.ListOrganizationTrips(c.UserContext(), actor, tripFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tripResponses(trips)})
}

// Get handles GET /api/trips/:id.
func (h *TripsHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	trip, err := h.service.GetTrip(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTripResponse(trip)})
}

// Revise handles PATCH /api/trips/:id.
func (h *TripsHandler) Revise(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ReviseTripRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	trip, err := h.service.ReviseTrip(c.UserContext(), actor, c.Params("id"), service.ReviseTripInput{
		Distance:      req.Distance,
		TransportMode: req.TransportMode,
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTripResponse(trip)})
}

// Delete handles DELETE /api/trips/:id.
func (h *TripsHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTrip(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Verify handles POST /api/trips/:id/verify.
func (h *TripsHandler) Verify(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.TripReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	trip, err := h.service.VerifyTrip(c.UserContext(), actor, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTripResponse(trip)})
}

// Reject handles POST /api/trips/:id/reject.
func (h *TripsHandler) Reject(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.TripReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	trip, err := h.service.RejectTrip(c.UserContext(), actor, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTripResponse(trip)})
}

func tripFilter(c *fiber.Ctx) service.TripListFilter {
	return service.TripListFilter{
		Statuses: parseStatuses[domain.TripStatus](c),
		Page:     parsePage(c),
	}
}

func tripResponses(trips []domain.Trip) []dto.TripResponse {
	items := make([]dto.TripResponse, 0, len(trips))
	for i := range trips {
		items = append(items, dto.NewTripResponse(&trips[i]))
	}
	return items
}
