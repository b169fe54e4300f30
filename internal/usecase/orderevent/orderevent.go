package orderevent

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/repo"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/google/uuid"
)

// UseCase hands order-created snapshots to the retry queue. It never waits
// for the broker.
type UseCase struct {
	queue  repo.RetryQueue
	orders repo.OrderRepo
	logger logger.Interface
}

func New(queue repo.RetryQueue, orders repo.OrderRepo, l logger.Interface) *UseCase {
	return &UseCase{
		queue:  queue,
		orders: orders,
		logger: l,
	}
}

func (uc *UseCase) Submit(ctx context.Context, snapshot entity.OrderSnapshot) {
	uc.queue.Enqueue(ctx, snapshot)
	uc.logger.Debug("OrderEventUseCase - Submit - id=%s queued", snapshot.ID)
}

// SubmitByID hydrates the snapshot from the order store before queueing it.
func (uc *UseCase) SubmitByID(ctx context.Context, id uuid.UUID) (entity.OrderSnapshot, error) {
	snapshot, err := uc.orders.GetSnapshot(ctx, id)
	if err != nil {
		return entity.OrderSnapshot{}, fmt.Errorf("OrderEventUseCase - SubmitByID - uc.orders.GetSnapshot: %w", err)
	}

	uc.Submit(ctx, snapshot)

	return snapshot, nil
}
