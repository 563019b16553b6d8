package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"campus-queue/internal/auth"
	"campus-queue/internal/http/middleware"
	"campus-queue/internal/models"
)

// Routes registers every endpoint on app.
func (h *Handler) Routes(app *fiber.App, authn auth.Authenticator) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "message": "Campus queue API running"})
	})

	app.Post("/auth/login", h.Login)

	// Display websocket is public, like the lobby screen it feeds.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/queues/:id", websocket.New(h.QueueWebSocket))

	ops := app.Group("/ops", middleware.BasicAuth(h.cfg.BasicAuthUser, h.cfg.BasicAuthPass))
	ops.Post("/sweep", h.Sweep)

	api := app.Group("/api", middleware.JWTAuth(authn))

	api.Get("/me/role", h.MyRole)
	api.Get("/queues", h.ListQueues)
	api.Get("/queues/:id", h.GetQueue)

	// Admin endpoints always need a bearer token.
	admin := middleware.RoleAuth(h.registry, models.RoleAdmin)
	api.Post("/queues", middleware.RequireAuth(), admin, h.CreateQueue)
	api.Put("/queues/:id", middleware.RequireAuth(), admin, h.UpdateQueue)
	api.Delete("/queues/:id", middleware.RequireAuth(), admin, h.DeleteQueue)
	api.Post("/users/:uid/role", middleware.RequireAuth(), admin, h.SetUserRole)

	api.Post("/queues/:id/book", h.BookToken)

	api.Post("/queues/:id/call-next", h.CallNext)
	api.Post("/queues/:id/clear-current", h.ClearCurrent)
	api.Post("/queues/:id/no-show", h.MarkNoShow)
	api.Post("/queues/:id/process-no-shows", h.ProcessNoShows)
	api.Get("/queues/:id/no-shows", h.ListNoShows)
}
