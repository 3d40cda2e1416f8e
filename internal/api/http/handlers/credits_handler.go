package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/carbon-ledger/internal/api/dto"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/service"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// CreditsHandler exposes credit transfers and market data.
type CreditsHandler struct {
	service *service.TransferService
}

// NewCreditsHandler constructs handler.
func NewCreditsHandler(transferService *service.TransferService) *CreditsHandler {
	return &CreditsHandler{service: transferService}
}

// Initiate handles POST /api/credits/transactions.
func (h *CreditsHandler) Initiate(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.InitiateTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	tx, err := h.service.InitiateTransfer(c.UserContext(), actor, service.InitiateTransferInput{
		FromOrganizationID: req.FromOrganizationID,
		ToOrganizationID:   req.ToOrganizationID,
		Credits:            req.Credits,
		PricePerCredit:     req.PricePerCredit,
		PaymentMethod:      domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		Notes:              req.Notes,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTransactionResponse(tx)})
}

// Decide handles POST /api/credits/transactions/:id/decision.
func (h *CreditsHandler) Decide(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Approve == nil {
		return apperrors.NewValidationError("approve is required", nil)
	}
	tx, err := h.service.DecideTransfer(c.UserContext(), actor, c.Params("id"), *req.Approve, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransactionResponse(tx)})
}

// Approve handles POST /api/credits/transactions/:id/approve.
func (h *CreditsHandler) Approve(c *fiber.Ctx) error {
	return h.transition(c, h.service.Approve)
}

// Reject handles POST /api/credits/transactions/:id/reject.
func (h *CreditsHandler) Reject(c *fiber.Ctx) error {
	return h.transition(c, h.service.Reject)
}

// Cancel handles POST /api/credits/transactions/:id/cancel.
func (h *CreditsHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.service.CancelTransfer)
}

type transitionFunc func(ctx context.Context, actor *domain.User, transactionID, comment string) (*domain.CreditTransaction, error)

func (h *CreditsHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	tx, err := fn(c.UserContext(), actor, c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransactionResponse(tx)})
}

// UpdatePayment handles PATCH /api/credits/transactions/:id/payment.
func (h *CreditsHandler) UpdatePayment(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.PaymentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	tx, err := h.service.UpdatePaymentDetails(c.UserContext(), actor, c.Params("id"), service.PaymentUpdateInput{
		Status:        req.Status,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransactionResponse(tx)})
}

// Get handles GET /api/credits/transactions/:id.
func (h *CreditsHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	tx, err := h.service.GetTransfer(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransactionResponse(tx)})
}

// History handles GET /api/credits/transactions/:id/history.
func (h *CreditsHandler) History(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	entries, err := h.service.ListTransferHistory(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListOrganization handles GET /api/credits/transactions/organization.
func (h *CreditsHandler) ListOrganization(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	txs, err := h.service.ListOrganizationTransfers(c.UserContext(), actor, service.TransferListFilter{
		Statuses: parseStatuses[domain.TransactionStatus](c),
		Page:     parsePage(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transactionResponses(txs)})
}

// ListPendingIncoming handles GET /api/credits/transactions/pending.
func (h *CreditsHandler) ListPendingIncoming(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	txs, err := h.service.ListPendingIncoming(c.UserContext(), actor, parsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transactionResponses(txs)})
}

// MarketStats handles GET /api/credits/market-stats.
func (h *CreditsHandler) MarketStats(c *fiber.Ctx) error {
	stats, err := h.service.GetMarketStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMarketStatsResponse(stats)})
}

func transactionResponses(txs []domain.CreditTransaction) []dto.TransactionResponse {
	items := make([]dto.TransactionResponse, 0, len(txs))
	for i := range txs {
		items = append(items, dto.NewTransactionResponse(&txs[i]))
	}
	return items
}
