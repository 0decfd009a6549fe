package http

import (
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/yasmin-dev/souq-orders/internal/transport/http/handler"
)

func NewApp(orders *handler.OrderHandler) *fiber.App {
	app := fiber.New()
	app.Use(otelfiber.Middleware())

	api := app.Group("/orders", NewIdentityMiddleware())
	api.Get("/status-options", orders.StatusOptions)
	api.Post("", orders.Create)
	api.Get("", orders.List)
	api.Get("/:id", orders.Get)
	api.Put("/:id/cancel", orders.Cancel)
	api.Put("/:id/status", orders.ChangeStatus)
	api.Put("/:id", orders.Update)

	return app
}
