package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/carbon-ledger/internal/auth"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user := auth.CurrentUser(c)
	if user == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return user, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parsePage(c *fiber.Ctx) repository.Page {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	return repository.Page{Limit: pageSize, Offset: (page - 1) * pageSize}
}

func parseStatuses[T ~string](c *fiber.Ctx) []T {
	raw := c.Query("status")
	if raw == "" {
		return nil
	}
	var statuses []T
	for _, part := range strings.Split(raw, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			statuses = append(statuses, T(part))
		}
	}
	return statuses
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
