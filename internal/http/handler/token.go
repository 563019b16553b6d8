package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"campus-queue/internal/models"
	"campus-queue/internal/queue"
	"campus-queue/internal/ratelimit"
)

// BookToken places the caller in the queue's waiting list.
func (h *Handler) BookToken(c *fiber.Ctx) error {
	ctx := c.UserContext()
	queueID := c.Params("id")

	var req models.BookTokenRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	who, err := h.resolveCaller(c, req.IdentityFallback)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.guard.Authorize(ctx, who.Identity); err != nil {
		return h.fail(c, err)
	}

	// Duplicates and unknown queues fail before the cooldown is recorded.
	if err := h.scheduler.CheckCanEnqueue(ctx, queueID, who.UID); err != nil {
		return h.fail(c, err)
	}

	decision, err := h.limiter.CheckAndRecord(ctx, who.UID, ratelimit.BookKey(queueID), h.cfg.BookCooldownDuration())
	if err != nil {
		return h.fail(c, err)
	}
	if !decision.Allowed {
		return h.fail(c, ratelimit.CooldownError(decision, "booking again"))
	}

	priority := h.classifier.Classify(who.Email)
	tokenID, err := h.scheduler.Enqueue(ctx, queueID, who.UID, who.Email, priority)
	if err != nil {
		return h.fail(c, err)
	}
	h.publish(ctx, queueID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"token_id": tokenID,
		"priority": priority,
	})
}

// requireServer resolves the caller and checks they are the queue's
// assigned server. Only bearer identities may use the admin bypass.
func (h *Handler) requireServer(c *fiber.Ctx, fb models.IdentityFallback) (caller, error) {
	who, err := h.resolveCaller(c, fb)
	if err != nil {
		return caller{}, err
	}
	uid := ""
	if who.Verified {
		uid = who.UID
	}
	if _, err := h.registry.RequireServer(c.UserContext(), c.Params("id"), uid, who.Email); err != nil {
		return caller{}, err
	}
	return who, nil
}

func (h *Handler) CallNext(c *fiber.Ctx) error {
	var req models.CashierRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	who, err := h.requireServer(c, req.IdentityFallback)
	if err != nil {
		return h.fail(c, err)
	}

	queueID := c.Params("id")
	res, err := h.scheduler.CallNext(c.UserContext(), queueID)
	if err != nil {
		return h.fail(c, err)
	}
	h.logger.Info("call next requested", zap.String("queue_id", queueID), zap.String("by", who.Email))
	h.publish(c.UserContext(), queueID)

	return c.JSON(fiber.Map{
		"success": true,
		"none":    res.None,
		"serving": res.Serving,
	})
}

func (h *Handler) ClearCurrent(c *fiber.Ctx) error {
	var req models.CashierRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	if _, err := h.requireServer(c, req.IdentityFallback); err != nil {
		return h.fail(c, err)
	}

	queueID := c.Params("id")
	if err := h.scheduler.ClearCurrent(c.UserContext(), queueID); err != nil {
		return h.fail(c, err)
	}
	h.publish(c.UserContext(), queueID)
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) MarkNoShow(c *fiber.Ctx) error {
	var req models.MarkNoShowRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	if _, err := h.requireServer(c, req.IdentityFallback); err != nil {
		return h.fail(c, err)
	}

	queueID := c.Params("id")
	res, err := h.reaper.MarkNoShowManual(c.UserContext(), queueID, req.TokenID, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	h.publish(c.UserContext(), queueID)

	return c.JSON(fiber.Map{
		"success": true,
		"record":  res.Record,
		"next":    res.Next,
	})
}

// ProcessNoShows runs the timeout sweep for one queue on demand.
func (h *Handler) ProcessNoShows(c *fiber.Ctx) error {
	var req models.CashierRequest
	if err := parseBody(c, &req); err != nil {
		return h.fail(c, err)
	}
	if _, err := h.requireServer(c, req.IdentityFallback); err != nil {
		return h.fail(c, err)
	}

	queueID := c.Params("id")
	res, err := h.reaper.SweepOne(c.UserContext(), queueID, queue.ReasonRequestedSweep)
	if err != nil {
		return h.fail(c, err)
	}
	if res.Processed {
		h.publish(c.UserContext(), queueID)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"processed": res.Processed,
		"reason":    res.Reason,
		"next":      res.Next,
	})
}

func (h *Handler) ListNoShows(c *fiber.Ctx) error {
	fb := models.IdentityFallback{UID: c.Query("uid"), Email: c.Query("email")}
	if _, err := h.requireServer(c, fb); err != nil {
		return h.fail(c, err)
	}

	records, err := h.reaper.ListNoShows(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"no_shows": records,
	})
}
