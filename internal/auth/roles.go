package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/carbon-ledger/internal/domain"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// RequireRole ensures the authenticated user holds one of the allowed roles.
// Ownership checks stay in the approval gate.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[user.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
