package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/carbon-ledger/internal/api/dto"
	"github.com/spec-kit/carbon-ledger/internal/service"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// OrganizationsHandler exposes organization onboarding and membership.
type OrganizationsHandler struct {
	service *service.OrganizationService
}

// NewOrganizationsHandler constructs handler.
func NewOrganizationsHandler(orgService *service.OrganizationService) *OrganizationsHandler {
	return &OrganizationsHandler{service: orgService}
}

// Approve handles POST /api/organizations/:id/approve.
func (h *OrganizationsHandler) Approve(c *fiber.Ctx) error {
	return h.decide(c, true)
}

// Reject handles POST /api/organizations/:id/reject.
func (h *OrganizationsHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, false)
}

func (h *OrganizationsHandler) decide(c *fiber.Ctx, approve bool) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	org, err := h.service.Decide(c.UserContext(), actor, c.Params("id"), approve)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrganizationResponse(org)})
}

// ListPending handles GET /api/organizations/pending.
func (h *OrganizationsHandler) ListPending(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	orgs, err := h.service.ListPending(c.UserContext(), actor, parsePage(c))
	if err != nil {
		return err
	}
	items := make([]dto.OrganizationResponse, 0, len(orgs))
	for i := range orgs {
		items = append(items, dto.NewOrganizationResponse(&orgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get handles GET /api/organizations/:id.
func (h *OrganizationsHandler) Get(c *fiber.Ctx) error {
	org, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrganizationResponse(org)})
}

// Credits handles GET /api/organizations/:id/credits.
func (h *OrganizationsHandler) Credits(c *fiber.Ctx) error {
	credits, err := h.service.GetCredits(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCreditsResponse(credits)})
}

// Ledger handles GET /api/organizations/:id/ledger.
func (h *OrganizationsHandler) Ledger(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	entries, err := h.service.LedgerEntries(c.UserContext(), actor, c.Params("id"), parsePage(c))
	if err != nil {
		return err
	}
	items := make([]dto.LedgerEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewLedgerEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListEmployees handles GET /api/organizations/:id/employees.
func (h *OrganizationsHandler) ListEmployees(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.service.ListEmployees(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddEmployee handles POST /api/organizations/:id/employees.
func (h *OrganizationsHandler) AddEmployee(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AddEmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.service.AddEmployee(c.UserContext(), actor, c.Params("id"), req.Email)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}
