package handler

import (
	"github.com/gofiber/fiber/v2"

	"campus-queue/internal/apperror"
	"campus-queue/internal/models"
)

func (h *Handler) Login(c *fiber.Ctx) error {
	if h.login == nil {
		return h.fail(c, apperror.New(apperror.KindNotFound, "Login is not enabled"))
	}

	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperror.InvalidArgument("Invalid request body"))
	}

	resp, err := h.login.Login(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"token":   resp.Token,
		"user":    resp.User,
	})
}

// MyRole reports the caller's role; users without one are students.
func (h *Handler) MyRole(c *fiber.Ctx) error {
	who, err := h.resolveCaller(c, models.IdentityFallback{UID: c.Query("uid")})
	if err != nil {
		return h.fail(c, err)
	}
	if who.UID == "" {
		return h.fail(c, apperror.Unauthenticated("Not logged in"))
	}

	role, err := h.registry.Role(c.UserContext(), who.UID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "role": role})
}

func (h *Handler) SetUserRole(c *fiber.Ctx) error {
	var req models.SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperror.InvalidArgument("Invalid request body"))
	}

	who, err := h.resolveCaller(c, models.IdentityFallback{})
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.registry.SetRole(c.UserContext(), who.UID, c.Params("uid"), req.Role); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
