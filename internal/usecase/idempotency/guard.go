package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/repo"
	"github.com/andreyxaxa/order-relay/internal/usecase"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
)

// Guard replays the stored response for a known idempotency key instead of
// running the command again.
type Guard struct {
	repo   repo.IdempotencyRepo
	logger logger.Interface
	now    func() time.Time
}

func New(r repo.IdempotencyRepo, l logger.Interface) *Guard {
	return &Guard{
		repo:   r,
		logger: l,
		now:    time.Now,
	}
}

// Execute runs cmd under key. The second return value is true when the
// response was replayed from storage. An empty key disables the guard.
func (g *Guard) Execute(
	ctx context.Context,
	key, requestHash string,
	cmd usecase.Command,
) (entity.CommandResponse, bool, error) {
	if key == "" {
		resp, err := cmd(ctx)

		return resp, false, err
	}

	existing, err := g.repo.Get(ctx, key)
	if err != nil {
		return entity.CommandResponse{}, false, fmt.Errorf("IdempotencyGuard - Execute - g.repo.Get: %w", err)
	}

	if existing != nil && existing.RequestHash != requestHash {
		return entity.CommandResponse{}, false, fmt.Errorf("IdempotencyGuard - Execute - key=%s: %w", key, errs.ErrIdempotencyKeyMismatch)
	}

	if existing.HasResponse() {
		return entity.CommandResponse{
			Status:  existing.ResponseStatus,
			Payload: existing.ResponsePayload,
			Headers: existing.ResponseHeaders,
		}, true, nil
	}

	resp, err := cmd(ctx)
	if err != nil {
		return entity.CommandResponse{}, false, err
	}

	record := &entity.IdempotencyRecord{
		Key:             key,
		CreatedAt:       g.now().UTC(),
		RequestHash:     requestHash,
		ResponsePayload: resp.Payload,
		ResponseStatus:  resp.Status,
		ResponseHeaders: resp.Headers,
	}

	// a record without a response means an earlier attempt died mid-flight
	if existing != nil {
		err = g.repo.UpdateResponse(ctx, record)
		if err != nil {
			g.logger.Error(err, "IdempotencyGuard - Execute - g.repo.UpdateResponse")
		}

		return resp, false, nil
	}

	err = g.repo.Create(ctx, record)
	switch {
	case errors.Is(err, errs.ErrDuplicateKey):
		g.logger.Warn("IdempotencyGuard - Execute - key=%s recorded concurrently, returning fresh result", key)
	case err != nil:
		g.logger.Error(err, "IdempotencyGuard - Execute - g.repo.Create")
	}

	return resp, false, nil
}

// HashRequest fingerprints a request body.
func HashRequest(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}
