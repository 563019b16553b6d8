package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Sweep runs the no-show sweep across all queues immediately. The sweeper
// notifies displays of every queue it advances.
func (h *Handler) Sweep(c *fiber.Ctx) error {
	sum, err := h.sweeper.RunOnce(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"summary": sum,
	})
}
