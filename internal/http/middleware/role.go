package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"campus-queue/internal/apperror"
)

// RoleLookup resolves a user's role.
type RoleLookup interface {
	Role(ctx context.Context, uid string) (string, error)
}

// RoleAuth allows the request when the bearer identity holds one of
// allowedRoles. It must run after RequireAuth.
func RoleAuth(roles RoleLookup, allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := Identity(c)
		if !ok {
			return Fail(c, apperror.Unauthenticated("Not logged in"))
		}

		role, err := roles.Role(c.UserContext(), id.UID)
		if err != nil {
			return Fail(c, err)
		}
		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Locals("role", role)
				return c.Next()
			}
		}

		return Fail(c, apperror.PermissionDenied("You do not have access to this resource"))
	}
}
