package v1

import (
	"github.com/andreyxaxa/order-relay/internal/usecase"
	"github.com/andreyxaxa/order-relay/pkg/logger"
)

type V1 struct {
	events usecase.OrderEventUseCase
	guard  usecase.IdempotencyGuard
	logger logger.Interface
}
