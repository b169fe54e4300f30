package usecase

import (
	"context"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/google/uuid"
)

type (
	// Notifier renders and sends the order confirmation. It returns
	// errs.ErrNoRecipient when the snapshot carries no address.
	Notifier interface {
		Notify(ctx context.Context, snapshot entity.OrderSnapshot) error
	}

	OrderEventUseCase interface {
		Submit(ctx context.Context, snapshot entity.OrderSnapshot)
		SubmitByID(ctx context.Context, id uuid.UUID) (entity.OrderSnapshot, error)
	}

	IdempotencyGuard interface {
		Execute(ctx context.Context, key, requestHash string, cmd Command) (entity.CommandResponse, bool, error)
	}

	// Command is the unit of work an IdempotencyGuard protects.
	Command func(ctx context.Context) (entity.CommandResponse, error)
)
