package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/andreyxaxa/order-relay/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/usecase/idempotency"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderIdempotencyKey     = "Idempotency-Key"
	HeaderIdempotentReplayed = "Idempotent-Replayed"
)

// @Summary 	Queue an order-created event
// @Description Queues the snapshot for publishing and customer notification. Repeating a request with the same Idempotency-Key replays the first response.
// @Tags 		orders
// @Accept 		json
// @Produce 	json
// @Param 		Idempotency-Key header string false "Idempotency key"
// @Success 	202 {object} response.EventQueued
// @Failure 	400 {object} response.Error "Invalid snapshot"
// @Failure 	422 {object} response.Error "Idempotency key reused with another body"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/orders/events [post]
func (r *V1) submitEvent(ctx *fiber.Ctx) error {
	body := ctx.Body()

	snapshot, err := entity.UnmarshalSnapshot(body)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid order snapshot")
	}

	return r.guarded(ctx, body, func(c context.Context) (entity.CommandResponse, error) {
		r.events.Submit(c, snapshot)

		return queued(snapshot)
	})
}

// @Summary 	Queue an order-created event for a stored order
// @Description Loads the order, then queues its snapshot like POST /v1/orders/events.
// @Tags 		orders
// @Produce 	json
// @Param 		id path string true "Order ID(uuid)"
// @Param 		Idempotency-Key header string false "Idempotency key"
// @Success 	202 {object} response.EventQueued
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Order not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/orders/{id}/events [post]
func (r *V1) submitEventByID(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	return r.guarded(ctx, nil, func(c context.Context) (entity.CommandResponse, error) {
		snapshot, err := r.events.SubmitByID(c, id)
		if err != nil {
			return entity.CommandResponse{}, err
		}

		return queued(snapshot)
	})
}

// guarded runs cmd behind the idempotency guard and writes its response.
func (r *V1) guarded(ctx *fiber.Ctx, body []byte, cmd func(context.Context) (entity.CommandResponse, error)) error {
	hash := idempotency.HashRequest([]byte(ctx.Method()), []byte(ctx.Path()), body)

	resp, replayed, err := r.guard.Execute(ctx.UserContext(), ctx.Get(HeaderIdempotencyKey), hash, cmd)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrIdempotencyKeyMismatch):
			return errorResponse(ctx, http.StatusUnprocessableEntity, "idempotency key already used for a different request")
		case errors.Is(err, errs.ErrRecordNotFound):
			return errorResponse(ctx, http.StatusNotFound, "order not found")
		}

		r.logger.Error(err, "restapi - v1 - guarded")

		return errorResponse(ctx, http.StatusInternalServerError, "internal error")
	}

	for k, v := range resp.Headers {
		ctx.Set(k, v)
	}

	if replayed {
		ctx.Set(HeaderIdempotentReplayed, "true")
	}

	return ctx.Status(resp.Status).Send(resp.Payload)
}

func queued(snapshot entity.OrderSnapshot) (entity.CommandResponse, error) {
	payload, err := json.Marshal(response.EventQueued{
		ID:          snapshot.ID.String(),
		OrderNumber: snapshot.OrderNumber,
		Queued:      true,
	})
	if err != nil {
		return entity.CommandResponse{}, fmt.Errorf("queued - json.Marshal: %w", err)
	}

	return entity.CommandResponse{
		Status:  http.StatusAccepted,
		Payload: payload,
		Headers: map[string]string{fiber.HeaderContentType: fiber.MIMEApplicationJSON},
	}, nil
}
