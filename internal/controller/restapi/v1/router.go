package v1

import (
	"github.com/andreyxaxa/order-relay/internal/usecase"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewOrderEventRoutes(apiV1Group fiber.Router, events usecase.OrderEventUseCase, guard usecase.IdempotencyGuard, l logger.Interface) {
	r := &V1{events: events, guard: guard, logger: l}

	{
		apiV1Group.Post("/orders/events", r.submitEvent)
		apiV1Group.Post("/orders/:id/events", r.submitEventByID)
	}
}
