package repo

import (
	"context"
	"io"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/google/uuid"
)

type (
	// RetryQueue is a FIFO of pending snapshots that holds each order id at
	// most once. It never fails: store errors degrade to an in-memory queue.
	RetryQueue interface {
		Enqueue(ctx context.Context, snapshot entity.OrderSnapshot)
		Dequeue(ctx context.Context) (entity.OrderSnapshot, bool)
		Len(ctx context.Context) int64
	}

	OrderRepo interface {
		GetSnapshot(ctx context.Context, id uuid.UUID) (entity.OrderSnapshot, error)
	}

	IdempotencyRepo interface {
		Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error)
		Create(ctx context.Context, record *entity.IdempotencyRecord) error
		UpdateResponse(ctx context.Context, record *entity.IdempotencyRecord) error
	}

	ExportStorage interface {
		Upload(ctx context.Context, key string, data io.Reader, contentType string, size int64) error
	}
)
