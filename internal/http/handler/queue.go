package handler

import (
	"github.com/gofiber/fiber/v2"

	"campus-queue/internal/apperror"
	"campus-queue/internal/models"
)

func (h *Handler) CreateQueue(c *fiber.Ctx) error {
	var req models.CreateQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperror.InvalidArgument("Invalid request body"))
	}

	who, err := h.resolveCaller(c, models.IdentityFallback{})
	if err != nil {
		return h.fail(c, err)
	}

	q, err := h.registry.Create(c.UserContext(), who.UID, req)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"queue":   q,
	})
}

func (h *Handler) UpdateQueue(c *fiber.Ctx) error {
	var req models.UpdateQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, apperror.InvalidArgument("Invalid request body"))
	}

	who, err := h.resolveCaller(c, models.IdentityFallback{})
	if err != nil {
		return h.fail(c, err)
	}

	q, err := h.registry.Update(c.UserContext(), who.UID, c.Params("id"), req)
	if err != nil {
		return h.fail(c, err)
	}
	h.publish(c.UserContext(), q.ID)

	return c.JSON(fiber.Map{
		"success": true,
		"queue":   q,
	})
}

func (h *Handler) DeleteQueue(c *fiber.Ctx) error {
	who, err := h.resolveCaller(c, models.IdentityFallback{})
	if err != nil {
		return h.fail(c, err)
	}

	queueID := c.Params("id")
	if err := h.registry.Delete(c.UserContext(), who.UID, queueID); err != nil {
		return h.fail(c, err)
	}
	h.publish(c.UserContext(), queueID)
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) ListQueues(c *fiber.Ctx) error {
	queues, err := h.registry.List(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"queues":  queues,
	})
}

// GetQueue returns the queue with its current slot and waiting list.
func (h *Handler) GetQueue(c *fiber.Ctx) error {
	snap, err := h.scheduler.Snapshot(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"snapshot": snap,
	})
}
