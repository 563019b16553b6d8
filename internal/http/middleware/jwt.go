package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"campus-queue/internal/access"
	"campus-queue/internal/apperror"
	"campus-queue/internal/auth"
)

const identityKey = "identity"

// JWTAuth verifies a bearer token when one is sent and stores the identity
// in Locals. Requests without an Authorization header pass through; a
// malformed or invalid header is rejected.
func JWTAuth(authn auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Next()
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			return Fail(c, apperror.Unauthenticated("Invalid authorization format"))
		}

		id, err := authn.Authenticate(c.UserContext(), tokenParts[1])
		if err != nil {
			return Fail(c, err)
		}

		c.Locals(identityKey, id)
		return c.Next()
	}
}

// RequireAuth rejects requests that carry no verified bearer identity.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := Identity(c); !ok {
			return Fail(c, apperror.Unauthenticated("Not logged in"))
		}
		return c.Next()
	}
}

// Identity returns the bearer identity stored by JWTAuth.
func Identity(c *fiber.Ctx) (access.Identity, bool) {
	id, ok := c.Locals(identityKey).(access.Identity)
	return id, ok
}

// Fail writes err as the standard error envelope.
func Fail(c *fiber.Ctx, err error) error {
	kind := apperror.KindOf(err)
	return c.Status(apperror.HTTPStatus(kind)).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"status":  kind,
			"message": apperror.Message(err),
		},
	})
}
