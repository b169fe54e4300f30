package restapi

import (
	v1 "github.com/andreyxaxa/order-relay/internal/controller/restapi/v1"
	"github.com/andreyxaxa/order-relay/internal/usecase"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the order event API, metrics and the liveness probe.
func NewRouter(
	app *fiber.App,
	events usecase.OrderEventUseCase,
	guard usecase.IdempotencyGuard,
	l logger.Interface,
	metricsEnabled bool,
) {
	if metricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusOK)
	})

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewOrderEventRoutes(apiV1Group, events, guard, l)
	}
}
