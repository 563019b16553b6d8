// Package handler exposes the dispatch engine over HTTP.
package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"campus-queue/internal/access"
	"campus-queue/internal/apperror"
	"campus-queue/internal/auth"
	"campus-queue/internal/config"
	"campus-queue/internal/http/middleware"
	"campus-queue/internal/logging"
	"campus-queue/internal/models"
	"campus-queue/internal/queue"
	"campus-queue/internal/ratelimit"
	"campus-queue/internal/realtime"
	"campus-queue/internal/sweeper"
)

// Deps are the collaborators a Handler serves.
type Deps struct {
	Config     config.Config
	Registry   *queue.Registry
	Scheduler  *queue.Scheduler
	Reaper     *queue.Reaper
	Limiter    *ratelimit.Limiter
	Guard      *access.Guard
	Classifier queue.PriorityClassifier
	Login      *auth.LoginService
	Hub        *realtime.Hub
	Sweeper    *sweeper.Sweeper
	Logger     *zap.Logger

	// Notifier defaults to one built from Hub and Scheduler.
	Notifier *realtime.Notifier
}

type Handler struct {
	cfg        config.Config
	registry   *queue.Registry
	scheduler  *queue.Scheduler
	reaper     *queue.Reaper
	limiter    *ratelimit.Limiter
	guard      *access.Guard
	classifier queue.PriorityClassifier
	login      *auth.LoginService
	hub        *realtime.Hub
	notifier   *realtime.Notifier
	sweeper    *sweeper.Sweeper
	logger     *zap.Logger
}

func New(d Deps) *Handler {
	classifier := d.Classifier
	if classifier == nil {
		classifier = queue.LocalPartPrefixClassifier(d.Config.LowPriorityPrefix)
	}
	notifier := d.Notifier
	if notifier == nil && d.Hub != nil {
		notifier = realtime.NewNotifier(d.Hub, d.Scheduler, d.Logger)
	}
	return &Handler{
		cfg:        d.Config,
		registry:   d.Registry,
		scheduler:  d.Scheduler,
		reaper:     d.Reaper,
		limiter:    d.Limiter,
		guard:      d.Guard,
		classifier: classifier,
		login:      d.Login,
		hub:        d.Hub,
		notifier:   notifier,
		sweeper:    d.Sweeper,
		logger:     logging.OrNop(d.Logger),
	}
}

// caller is the resolved request identity. Verified is true only for
// identities backed by a bearer token.
type caller struct {
	access.Identity
	Verified bool
}

// resolveCaller prefers the bearer identity and falls back to body fields
// when the server allows it. Fallback identities never count as verified.
func (h *Handler) resolveCaller(c *fiber.Ctx, fb models.IdentityFallback) (caller, error) {
	if id, ok := middleware.Identity(c); ok {
		return caller{Identity: id, Verified: true}, nil
	}
	if !h.cfg.AllowUnverifiedFallback {
		return caller{}, apperror.Unauthenticated("Not logged in")
	}
	uid := strings.TrimSpace(fb.UID)
	email := strings.TrimSpace(fb.FallbackEmail())
	if uid == "" && email == "" {
		return caller{}, apperror.Unauthenticated("Not logged in")
	}
	return caller{Identity: access.Identity{UID: uid, Email: email}}, nil
}

// parseBody decodes an optional JSON body into v.
func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return apperror.InvalidArgument("Invalid request body")
	}
	return nil
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	if apperror.KindOf(err) == apperror.KindInternal {
		h.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return middleware.Fail(c, err)
}

// publish pushes the queue's current state to its displays.
func (h *Handler) publish(ctx context.Context, queueID string) {
	h.notifier.QueueChanged(ctx, queueID)
}
