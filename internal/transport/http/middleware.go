package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/yasmin-dev/souq-orders/internal/domain"
)

const actorKey = "actor"

// NewIdentityMiddleware trusts the identity headers injected by the API
// gateway after it has validated the bearer token. Requests arriving without
// them never passed the gateway.
func NewIdentityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := strconv.ParseInt(c.Get("X-User-Id"), 10, 64)
		if err != nil || userID <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missing identity"})
		}

		role := domain.Role(c.Get("X-User-Role"))
		switch role {
		case domain.RoleCustomer, domain.RoleStaff, domain.RoleAdmin:
		default:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: unknown role"})
		}

		c.Locals(actorKey, domain.Actor{ID: userID, Role: role})
		return c.Next()
	}
}
